package world

import (
	"context"
	"fmt"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	loggingcombat "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/combat"
	loggingstatus "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/status_effects"
)

// ProjectileRemoval names why a projectile left the world.
type ProjectileRemoval string

const (
	RemovalNone        ProjectileRemoval = ""
	RemovalHit         ProjectileRemoval = "hit"
	RemovalExpired     ProjectileRemoval = "expired"
	RemovalMaxDistance ProjectileRemoval = "max_distance"
	RemovalOutOfBounds ProjectileRemoval = "out_of_bounds"
)

// ProjectileLimit reports which lifetime limit pr has crossed at now, if any.
func ProjectileLimit(pr *Projectile, now time.Time, width, height float64) ProjectileRemoval {
	switch {
	case !now.Before(pr.ExpiresAt):
		return RemovalExpired
	case pr.MaxDistance > 0 && pr.Traveled() > pr.MaxDistance:
		return RemovalMaxDistance
	case pr.X < 0 || pr.X > width || pr.Y < 0 || pr.Y > height:
		return RemovalOutOfBounds
	default:
		return RemovalNone
	}
}

func (w *World) stepProjectiles(dt float64) {
	kept := w.projectiles[:0]
	for _, pr := range w.projectiles {
		pr.X += pr.VX * dt
		pr.Y += pr.VY * dt
		if w.resolveProjectileHit(pr) {
			continue
		}
		if ProjectileLimit(pr, w.now, w.width, w.height) != RemovalNone {
			continue
		}
		kept = append(kept, pr)
	}
	for i := len(kept); i < len(w.projectiles); i++ {
		w.projectiles[i] = nil
	}
	w.projectiles = kept
}

// resolveProjectileHit tests collisions in priority order and applies the
// first one found. It reports whether the projectile was consumed.
func (w *World) resolveProjectileHit(pr *Projectile) bool {
	if pr.Kind == ProjectileSlimeBall {
		return w.hitPlayerWithSlow(pr)
	}
	if pr.OwnerKind == OwnerPlayer && w.hitEnemy(pr) {
		return true
	}
	return w.hitOpposingPlayer(pr)
}

func (w *World) hitEnemy(pr *Projectile) bool {
	for i, e := range w.enemies {
		if e.Zone != pr.Zone {
			continue
		}
		if !circlesOverlap(e.X, e.Y, e.Radius, pr.X, pr.Y, pr.Radius) {
			continue
		}
		damage := pr.Damage
		e.HP = max(0, e.HP-damage)
		w.floatText(e.Zone, e.X, e.Y-e.Radius-6, fmt.Sprintf("-%d", damage), ColorEnemyDamage, floatTextTTL)
		loggingcombat.Damage(context.Background(), w.publisher, w.tick, logging.PlayerRef(pr.OwnerID), logging.EnemyRef(e.ID), loggingcombat.DamagePayload{
			Source:       string(pr.Kind),
			Amount:       damage,
			TargetHealth: e.HP,
			Zone:         string(e.Zone),
		}, nil)
		if e.HP <= 0 {
			w.killEnemy(i, pr.OwnerID)
		}
		return true
	}
	return false
}

func (w *World) hitOpposingPlayer(pr *Projectile) bool {
	if pr.Zone == ZoneSafe {
		return false
	}
	for _, id := range w.playerOrder {
		victim := w.players[id]
		if pr.OwnedBy(OwnerPlayer, victim.ID) || victim.Zone != pr.Zone {
			continue
		}
		if !circlesOverlap(victim.X, victim.Y, PlayerRadius, pr.X, pr.Y, pr.Radius) {
			continue
		}
		attacker := logging.PlayerRef(pr.OwnerID)
		if w.damagePlayer(victim, pr.Damage, string(pr.Kind), attacker, ColorPvPDamage, 20) {
			killer := w.players[pr.OwnerID]
			w.handlePlayerDeath(victim, killer, true, string(pr.Kind))
		}
		return true
	}
	return false
}

func (w *World) hitPlayerWithSlow(pr *Projectile) bool {
	for _, id := range w.playerOrder {
		victim := w.players[id]
		if victim.Zone != pr.Zone {
			continue
		}
		if !circlesOverlap(victim.X, victim.Y, PlayerRadius, pr.X, pr.Y, pr.Radius) {
			continue
		}
		if victim.Status.HitImmune(w.now) {
			return true
		}
		attacker := logging.EnemyRef(pr.OwnerID)
		died := w.damagePlayer(victim, pr.Damage, string(pr.Kind), attacker, ColorShotDamage, 20)
		w.applySlow(victim, pr, attacker)
		if died {
			w.handlePlayerDeath(victim, nil, false, string(pr.Kind))
		}
		return true
	}
	return false
}

func (w *World) applySlow(p *Player, pr *Projectile, source logging.EntityRef) {
	factor := pr.SlowFactor
	if factor <= 0 {
		factor = DefaultSlowFactor
	}
	p.Status.SlowFactor = factor
	p.Status.SlowUntil = w.now.Add(pr.SlowDuration)
	loggingstatus.Slowed(context.Background(), w.publisher, w.tick, source, logging.PlayerRef(p.ID), loggingstatus.SlowedPayload{
		Factor:     factor,
		DurationMs: pr.SlowDuration.Milliseconds(),
		SourceID:   pr.ID,
		Zone:       string(p.Zone),
	})
}

func (w *World) launch(pr *Projectile, actor logging.EntityRef, ability string, targetX, targetY float64) {
	pr.ID = w.nextProjectile()
	pr.StartX, pr.StartY = pr.X, pr.Y
	w.projectiles = append(w.projectiles, pr)
	loggingcombat.ProjectileLaunched(context.Background(), w.publisher, w.tick, actor, logging.ProjectileRef(pr.ID), loggingcombat.ProjectileLaunchedPayload{
		Ability: ability,
		Zone:    string(pr.Zone),
		TargetX: targetX,
		TargetY: targetY,
	})
}
