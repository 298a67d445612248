// Package combat publishes damage, defeat and projectile events.
package combat

import (
	"context"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

const (
	EventDamage             logging.EventType = "combat.damage"
	EventDefeat             logging.EventType = "combat.defeat"
	EventProjectileLaunched logging.EventType = "combat.projectile_launched"
)

// DamagePayload is one hit. Source names the ability or "contact".
type DamagePayload struct {
	Source       string `json:"source"`
	Amount       int    `json:"amount"`
	TargetHealth int    `json:"targetHealth"`
	Zone         string `json:"zone"`
}

type DefeatPayload struct {
	Source string `json:"source"`
	Zone   string `json:"zone"`
	PvP    bool   `json:"pvp,omitempty"`
}

type ProjectileLaunchedPayload struct {
	Ability string  `json:"ability"`
	Zone    string  `json:"zone"`
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload DamagePayload, extra map[string]any) {
	emit(ctx, pub, EventDamage, logging.SeverityDebug, tick, actor, target, payload, extra)
}

func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload DefeatPayload, extra map[string]any) {
	emit(ctx, pub, EventDefeat, logging.SeverityInfo, tick, actor, target, payload, extra)
}

// ProjectileLaunched targets the projectile itself so its id can be joined
// against later damage events.
func ProjectileLaunched(ctx context.Context, pub logging.Publisher, tick uint64, actor, projectile logging.EntityRef, payload ProjectileLaunchedPayload) {
	emit(ctx, pub, EventProjectileLaunched, logging.SeverityDebug, tick, actor, projectile, payload, nil)
}

func emit(ctx context.Context, pub logging.Publisher, kind logging.EventType, severity logging.Severity, tick uint64, actor, target logging.EntityRef, payload any, extra map[string]any) {
	logging.Emit(ctx, pub, logging.Event{
		Type:     kind,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: severity,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}
