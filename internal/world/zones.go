package world

import "time"

// ZoneID names a bounded sub-area with its own population.
type ZoneID string

const (
	ZoneGrass  ZoneID = "grass"
	ZoneSlime  ZoneID = "slime"
	ZoneSlime2 ZoneID = "slime2"
	ZoneSafe   ZoneID = "safe"

	// DefaultZone is where new players spawn.
	DefaultZone = ZoneGrass
)

// HostileZones lists the zones that receive an enemy population.
var HostileZones = []ZoneID{ZoneGrass, ZoneSlime, ZoneSlime2}

// Edge identifies which world border a player crossed.
type Edge int

const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// ZoneTransition moves a player crossing Edge of From into To, entering at
// the opposite border.
type ZoneTransition struct {
	From ZoneID
	Edge Edge
	To   ZoneID
}

// Rules are evaluated in order and the first match wins.
var zoneTransitions = []ZoneTransition{
	{From: ZoneGrass, Edge: EdgeRight, To: ZoneSlime},
	{From: ZoneSlime, Edge: EdgeLeft, To: ZoneGrass},
	{From: ZoneSlime, Edge: EdgeRight, To: ZoneSlime2},
	{From: ZoneSlime2, Edge: EdgeLeft, To: ZoneSlime},
	{From: ZoneGrass, Edge: EdgeTop, To: ZoneSafe},
	{From: ZoneSafe, Edge: EdgeBottom, To: ZoneGrass},
}

// Crossed reports whether (x, y) sits past the trigger line of edge.
func (e Edge) Crossed(x, y, width, height float64) bool {
	switch e {
	case EdgeLeft:
		return x <= edgeTrigger
	case EdgeRight:
		return x >= width-edgeTrigger
	case EdgeTop:
		return y <= edgeTrigger
	case EdgeBottom:
		return y >= height-edgeTrigger
	default:
		return false
	}
}

// Enter places a player that crossed edge at the opposite border's entry line.
func (e Edge) Enter(x, y, width, height float64) (float64, float64) {
	switch e {
	case EdgeLeft:
		return width - edgeEntry, y
	case EdgeRight:
		return edgeEntry, y
	case EdgeTop:
		return x, height - edgeEntry
	case EdgeBottom:
		return x, edgeEntry
	default:
		return x, y
	}
}

// FindTransition returns the first rule matching a player in zone at (x, y).
func FindTransition(zone ZoneID, x, y, width, height float64) (ZoneTransition, bool) {
	for _, rule := range zoneTransitions {
		if rule.From != zone {
			continue
		}
		if rule.Edge.Crossed(x, y, width, height) {
			return rule, true
		}
	}
	return ZoneTransition{}, false
}

// Checkpoint is the last safe-zone position a player visited.
type Checkpoint struct {
	Zone ZoneID
	X    float64
	Y    float64
}

// DefaultCheckpoint is used until a player enters the safe zone.
func DefaultCheckpoint(width, height float64) Checkpoint {
	return Checkpoint{Zone: ZoneSafe, X: width / 2, Y: height - 30}
}

// EnemyProfile holds the per-zone stat table for spawned enemies.
type EnemyProfile struct {
	Kind        string
	Level       int
	Radius      float64
	HP          int
	XPReward    int
	GoldReward  int
	DetectRange float64
	TouchDamage int
	SpeedBonus  float64

	Aggressive   bool
	FireInterval time.Duration
	AttackRange  float64
	ShotDamage   int
	ShotSpeed    float64
	SlowFactor   float64
	SlowDuration time.Duration
}

var enemyProfiles = map[ZoneID]EnemyProfile{
	ZoneGrass: {
		Kind: "slime", Level: 1, Radius: 12, HP: 50,
		XPReward: 20, GoldReward: 5, DetectRange: 220, TouchDamage: 8,
	},
	ZoneSlime: {
		Kind: "slime", Level: 2, Radius: 14, HP: 90,
		XPReward: 40, GoldReward: 12, DetectRange: 320, TouchDamage: 12, SpeedBonus: 5,
		Aggressive: true, FireInterval: 1400 * time.Millisecond, AttackRange: 260,
		ShotDamage: 14, ShotSpeed: 300, SlowFactor: 0.6, SlowDuration: 1300 * time.Millisecond,
	},
	ZoneSlime2: {
		Kind: "slime", Level: 3, Radius: 15, HP: 120,
		XPReward: 60, GoldReward: 18, DetectRange: 360, TouchDamage: 16, SpeedBonus: 15,
		Aggressive: true, FireInterval: 1000 * time.Millisecond, AttackRange: 280,
		ShotDamage: 18, ShotSpeed: 340, SlowFactor: 0.6, SlowDuration: 1400 * time.Millisecond,
	},
}

// EnemyProfileFor returns the stat table for zone. The safe zone has none.
func EnemyProfileFor(zone ZoneID) (EnemyProfile, bool) {
	profile, ok := enemyProfiles[zone]
	return profile, ok
}
