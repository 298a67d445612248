package world

import "time"

const (
	ClassFiremage = "firemage"

	// MaxAbilitySlots is the number of hotbar slots.
	MaxAbilitySlots = 5
)

// Cast denial reasons.
const (
	DenyCooldown  = "cooldown"
	DenyLocked    = "locked"
	DenyNoClass   = "no_class"
	DenyNoAbility = "no_ability"
)

var allowedClasses = map[string]struct{}{
	ClassFiremage: {},
}

// ClassAllowed reports whether id may be selected.
func ClassAllowed(id string) bool {
	_, ok := allowedClasses[id]
	return ok
}

// slotUnlockLevels[i] is the class level that unlocks slot i+1.
var slotUnlockLevels = [MaxAbilitySlots]int{1, 3, 6, 10, 18}

// SlotUnlockLevel returns the class level needed for slot, or 0 when the slot
// does not exist.
func SlotUnlockLevel(slot int) int {
	if slot < 1 || slot > MaxAbilitySlots {
		return 0
	}
	return slotUnlockLevels[slot-1]
}

// Ability describes a projectile a class can launch from a slot.
type Ability struct {
	ID          string
	Kind        ProjectileKind
	Speed       float64
	Radius      float64
	Lifetime    time.Duration
	MaxDistance float64
	Damage      int
	Cooldown    time.Duration
}

var classAbilities = map[string]map[int]Ability{
	ClassFiremage: {
		1: {
			ID:          "fireball",
			Kind:        ProjectileFireball,
			Speed:       450,
			Radius:      4,
			Lifetime:    1500 * time.Millisecond,
			MaxDistance: 550,
			Damage:      20,
			Cooldown:    1000 * time.Millisecond,
		},
	},
}

// AbilityFor returns the ability bound to slot for class.
func AbilityFor(class string, slot int) (Ability, bool) {
	slots, ok := classAbilities[class]
	if !ok {
		return Ability{}, false
	}
	ability, ok := slots[slot]
	return ability, ok
}
