package world

import (
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"
)

// StatusEffects are the transient timers attached to a player.
type StatusEffects struct {
	SlowFactor       float64
	SlowUntil        time.Time
	TouchImmuneUntil time.Time
	HitImmuneUntil   time.Time
}

// Slowed reports whether a slow is active at now.
func (s StatusEffects) Slowed(now time.Time) bool {
	return s.SlowUntil.After(now)
}

// SpeedFactor is the movement multiplier at now.
func (s StatusEffects) SpeedFactor(now time.Time) float64 {
	if !s.Slowed(now) {
		return 1
	}
	if s.SlowFactor <= 0 {
		return DefaultSlowFactor
	}
	return s.SlowFactor
}

// HitImmune reports whether the post-respawn immunity window is open.
func (s StatusEffects) HitImmune(now time.Time) bool {
	return s.HitImmuneUntil.After(now)
}

// CooldownTable stores the ready-at time per ability slot.
type CooldownTable [MaxAbilitySlots]time.Time

// Remaining returns the wait left on slot at now; zero when ready.
func (c *CooldownTable) Remaining(slot int, now time.Time) time.Duration {
	if slot < 1 || slot > MaxAbilitySlots {
		return 0
	}
	left := c[slot-1].Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Start puts slot on cooldown for d from now.
func (c *CooldownTable) Start(slot int, now time.Time, d time.Duration) {
	if slot < 1 || slot > MaxAbilitySlots || d < 0 {
		return
	}
	c[slot-1] = now.Add(d)
}

// Player is the authoritative record for a connected account.
type Player struct {
	ID               string
	Name             string
	Zone             ZoneID
	X                float64
	Y                float64
	HP               int
	HPMax            int
	Class            string
	Level            int
	Gold             int
	LastProcessedSeq uint32
	Checkpoint       Checkpoint
	Status           StatusEffects
	Cooldowns        CooldownTable

	progress storage.ProgressRecord
}

// XP returns the experience held by the active class.
func (p *Player) XP() int {
	if p.Class == "" {
		return 0
	}
	return p.progress.Classes[p.Class].XP
}

// Progress returns a copy of the player's persisted progress, with the live
// health of the active class folded in.
func (p *Player) Progress() storage.ProgressRecord {
	record := p.progress.Clone()
	if p.Class != "" {
		if bag, ok := record.Classes[p.Class]; ok {
			bag.HP = max(0, min(bag.HPMax, p.HP))
			record.Classes[p.Class] = bag
		}
	}
	return record
}

// TotalLevel sums the levels across every class the account has played.
func (p *Player) TotalLevel() int {
	return stats.TotalLevel(p.progress.Classes)
}

// RewardMultiplier is the account-wide xp and gold scalar.
func (p *Player) RewardMultiplier() float64 {
	return stats.RewardMultiplier(p.TotalLevel())
}

// activeBag returns the progress bag of the selected class.
func (p *Player) activeBag() (stats.ClassProgress, bool) {
	if p.Class == "" {
		return stats.ClassProgress{}, false
	}
	bag, ok := p.progress.Classes[p.Class]
	return bag, ok
}

// mirrorBag stores bag for the active class and copies level and health back
// onto the live record.
func (p *Player) mirrorBag(bag stats.ClassProgress) {
	if p.Class == "" {
		return
	}
	p.progress.Classes[p.Class] = bag
	p.Level = bag.Level
	p.HPMax = bag.HPMax
	p.HP = min(p.HPMax, bag.HP)
}

func (p *Player) heal() {
	p.HP = p.HPMax
}

// EnemyState is the behaviour an enemy ran on its last step.
type EnemyState string

const (
	EnemyWandering EnemyState = "wandering"
	EnemyChasing   EnemyState = "chasing"
	EnemyAttacking EnemyState = "attacking"
)

// Enemy is a spawned hostile creature.
type Enemy struct {
	ID        string
	Kind      string
	Zone      ZoneID
	X         float64
	Y         float64
	VX        float64
	VY        float64
	Level     int
	HP        int
	HPMax     int
	Radius    float64
	MoveSpeed float64
	State     EnemyState

	profile    EnemyProfile
	lastShotAt time.Time
}

// ProjectileKind distinguishes direct damage from damage plus slow.
type ProjectileKind string

const (
	ProjectileFireball  ProjectileKind = "fireball"
	ProjectileSlimeBall ProjectileKind = "slimeBall"
)

// OwnerKind identifies who launched a projectile.
type OwnerKind string

const (
	OwnerPlayer OwnerKind = "player"
	OwnerEnemy  OwnerKind = "enemy"
)

// Projectile is a moving hitbox.
type Projectile struct {
	ID           string
	Kind         ProjectileKind
	OwnerKind    OwnerKind
	OwnerID      string
	Zone         ZoneID
	X            float64
	Y            float64
	StartX       float64
	StartY       float64
	VX           float64
	VY           float64
	Radius       float64
	Damage       int
	SlowFactor   float64
	SlowDuration time.Duration
	ExpiresAt    time.Time
	MaxDistance  float64
}

// Traveled is the straight-line distance from the spawn point.
func (pr *Projectile) Traveled() float64 {
	return distance(pr.StartX, pr.StartY, pr.X, pr.Y)
}

// OwnedBy reports whether the projectile was launched by the given owner.
func (pr *Projectile) OwnedBy(kind OwnerKind, id string) bool {
	return pr.OwnerKind == kind && pr.OwnerID == id
}
