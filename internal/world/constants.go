package world

import "time"

const (
	DefaultWidth  = 800.0
	DefaultHeight = 600.0
	DefaultSeed   = "drakantos"

	// PlayerRadius is the collision radius shared by every player.
	PlayerRadius = 10.0
	// PlayerSpeed is the movement speed in px/s before slow effects.
	PlayerSpeed = 200.0
	// MoveMargin keeps players this far inside the world edges.
	MoveMargin = 10.0
	// DefaultSlowFactor applies when a slow status carries no explicit factor.
	DefaultSlowFactor = 0.6

	// InputStaleAfter is how long an intent stays valid without a refresh.
	InputStaleAfter = 200 * time.Millisecond

	edgeTrigger = 5.0
	edgeEntry   = 20.0

	spawnJitter = 20.0

	touchImmunity = 500 * time.Millisecond
	deathImmunity = 1000 * time.Millisecond

	enemyBounceMargin = 20.0
	enemyRespawnDelay = 2500 * time.Millisecond
	enemyRespawnCount = 1
	enemyBaseSpeedMin = 30.0
	enemyBaseSpeedVar = 20.0

	enemyShotRadius   = 5.0
	enemyShotLifetime = 2000 * time.Millisecond
	enemyShotRange    = 500.0

	floatTextTTL     = 1000 * time.Millisecond
	longFloatTextTTL = 1200 * time.Millisecond
)

// Floating text colours.
const (
	ColorEnemyDamage = "#ffcc66"
	ColorXP          = "#66ccff"
	ColorGold        = "#ffd700"
	ColorPvPDamage   = "#ff3333"
	ColorShotDamage  = "#ff5555"
	ColorTouchDamage = "#ff4444"
	ColorXPLoss      = "#ff6666"
)
