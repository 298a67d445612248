package world

import "time"

// PlayerView is the replicated slice of a player record. TotalLevel and
// RewardMult are only populated on the recipient's own entry.
type PlayerView struct {
	ID               string
	Name             string
	Zone             ZoneID
	X                float64
	Y                float64
	HP               int
	HPMax            int
	Class            string
	Level            int
	XP               int
	Gold             int
	LastProcessedSeq uint32
	Slowed           bool
	SlowFactor       float64

	TotalLevel int
	RewardMult float64
}

// ProjectileView is the replicated slice of a projectile.
type ProjectileView struct {
	ID     string
	Kind   ProjectileKind
	Owner  OwnerKind
	X      float64
	Y      float64
	VX     float64
	VY     float64
	Radius float64
}

// EnemyView is the replicated slice of an enemy.
type EnemyView struct {
	ID         string
	Kind       string
	X          float64
	Y          float64
	HP         int
	HPMax      int
	Level      int
	Radius     float64
	Aggressive bool
	State      EnemyState
}

// ZoneSnapshot is the point-in-time state of one zone.
type ZoneSnapshot struct {
	Zone        ZoneID
	Tick        uint64
	ServerTime  time.Time
	Players     []PlayerView
	Projectiles []ProjectileView
	Enemies     []EnemyView
}

// For returns a copy of the snapshot with the account-wide aggregates merged
// into selfID's entry only. The player slice is copied; the rest is shared.
func (s ZoneSnapshot) For(w *World, selfID string) ZoneSnapshot {
	out := s
	out.Players = append([]PlayerView(nil), s.Players...)
	p, ok := w.players[selfID]
	if !ok {
		return out
	}
	for i := range out.Players {
		if out.Players[i].ID != selfID {
			continue
		}
		out.Players[i].TotalLevel = p.TotalLevel()
		out.Players[i].RewardMult = p.RewardMultiplier()
		break
	}
	return out
}

func (w *World) playerView(p *Player) PlayerView {
	return PlayerView{
		ID:               p.ID,
		Name:             p.Name,
		Zone:             p.Zone,
		X:                p.X,
		Y:                p.Y,
		HP:               p.HP,
		HPMax:            p.HPMax,
		Class:            p.Class,
		Level:            p.Level,
		XP:               p.XP(),
		Gold:             p.Gold,
		LastProcessedSeq: p.LastProcessedSeq,
		Slowed:           p.Status.Slowed(w.now),
		SlowFactor:       p.Status.SpeedFactor(w.now),
	}
}

// PlayerView returns the replicated view of id.
func (w *World) PlayerView(id string) (PlayerView, bool) {
	p, ok := w.players[id]
	if !ok {
		return PlayerView{}, false
	}
	return w.playerView(p), true
}

// Snapshot builds the view of zone at the current tick.
func (w *World) Snapshot(zone ZoneID) ZoneSnapshot {
	snap := ZoneSnapshot{Zone: zone, Tick: w.tick, ServerTime: w.now}
	for _, id := range w.playerOrder {
		p := w.players[id]
		if p.Zone == zone {
			snap.Players = append(snap.Players, w.playerView(p))
		}
	}
	for _, pr := range w.projectiles {
		if pr.Zone != zone {
			continue
		}
		snap.Projectiles = append(snap.Projectiles, ProjectileView{
			ID:     pr.ID,
			Kind:   pr.Kind,
			Owner:  pr.OwnerKind,
			X:      pr.X,
			Y:      pr.Y,
			VX:     pr.VX,
			VY:     pr.VY,
			Radius: pr.Radius,
		})
	}
	for _, e := range w.enemies {
		if e.Zone != zone {
			continue
		}
		snap.Enemies = append(snap.Enemies, EnemyView{
			ID:         e.ID,
			Kind:       e.Kind,
			X:          e.X,
			Y:          e.Y,
			HP:         e.HP,
			HPMax:      e.HPMax,
			Level:      e.Level,
			Radius:     e.Radius,
			Aggressive: e.profile.Aggressive,
			State:      e.State,
		})
	}
	return snap
}

// Snapshots builds one snapshot per zone that currently holds a player.
func (w *World) Snapshots() map[ZoneID]ZoneSnapshot {
	out := make(map[ZoneID]ZoneSnapshot)
	for _, id := range w.playerOrder {
		zone := w.players[id].Zone
		if _, ok := out[zone]; ok {
			continue
		}
		out[zone] = w.Snapshot(zone)
	}
	return out
}
