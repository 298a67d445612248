package stats

import "math"

const (
	// MaxClassLevel caps every class progress bag.
	MaxClassLevel = 10
	// DefaultClassHP is the max and current health of a fresh class bag.
	DefaultClassHP = 100

	baseXPToLevel       = 100
	xpPerLevelStep      = 50
	levelUpMaxHealth    = 5
	levelUpHeal         = 10
	rewardBonusPerLevel = 0.05
	maxRewardMultiplier = 3.0
	deathXPLossRatio    = 0.10
	antiFarmLevelGap    = 3
)

// ClassProgress is the persisted per-account, per-class progress bag.
type ClassProgress struct {
	Level int `json:"level"`
	XP    int `json:"xp"`
	HPMax int `json:"hpMax"`
	HP    int `json:"hp"`
}

// NewClassProgress returns the bag a class starts with on first selection.
func NewClassProgress() ClassProgress {
	return ClassProgress{Level: 1, XP: 0, HPMax: DefaultClassHP, HP: DefaultClassHP}
}

// Normalized fills zero or out-of-range fields with defaults. Missing fields
// in persisted bags are treated the same way a fresh class would be.
func (c ClassProgress) Normalized() ClassProgress {
	if c.Level < 1 {
		c.Level = 1
	}
	if c.Level > MaxClassLevel {
		c.Level = MaxClassLevel
	}
	if c.XP < 0 {
		c.XP = 0
	}
	if c.HPMax <= 0 {
		c.HPMax = DefaultClassHP
	}
	if c.HP <= 0 || c.HP > c.HPMax {
		c.HP = c.HPMax
	}
	return c
}

// XPForNextLevel returns the experience needed to advance from level.
func XPForNextLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return baseXPToLevel + xpPerLevelStep*(level-1)
}

// TotalLevel sums class levels, counting any level below 1 as 1.
func TotalLevel(classes map[string]ClassProgress) int {
	total := 0
	for _, class := range classes {
		total += max(1, class.Level)
	}
	return total
}

// RewardMultiplier derives the account-wide xp/gold scalar from the summed
// class levels.
func RewardMultiplier(totalLevel int) float64 {
	return min(max(1+rewardBonusPerLevel*float64(totalLevel-1), 1), maxRewardMultiplier)
}

// KillExperience scales an enemy's base xp reward. The result is at least 1
// unless the class out-levels the enemy by the anti-farming gap, in which case
// no experience is granted.
func KillExperience(base int, multiplier float64, classLevel, enemyLevel int) int {
	if classLevel-enemyLevel >= antiFarmLevelGap {
		return 0
	}
	gain := int(math.Floor(float64(base) * multiplier))
	if gain < 1 {
		gain = 1
	}
	return gain
}

// KillGold scales an enemy's base gold reward; there is no minimum.
func KillGold(base int, multiplier float64) int {
	gain := int(math.Floor(float64(base) * multiplier))
	if gain < 0 {
		return 0
	}
	return gain
}

// DeathExperienceLoss is the experience a class forfeits on death.
func DeathExperienceLoss(xp int) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Floor(float64(xp) * deathXPLossRatio))
}

// GrantExperience adds gain to the bag and applies level-ups while the bag
// has enough experience and is below the level cap. It returns the number of
// levels gained.
func GrantExperience(c *ClassProgress, gain int) int {
	if c == nil {
		return 0
	}
	if gain > 0 {
		c.XP += gain
	}
	gained := 0
	need := XPForNextLevel(c.Level)
	for c.Level < MaxClassLevel && c.XP >= need {
		c.XP -= need
		c.Level++
		c.HPMax += levelUpMaxHealth
		c.HP = min(c.HPMax, c.HP+levelUpHeal)
		gained++
		need = XPForNextLevel(c.Level)
	}
	return gained
}
