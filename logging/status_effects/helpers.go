package status_effects

import (
	"context"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

const (
	// EventSlowed is emitted when a slowing projectile lands on a player.
	EventSlowed logging.EventType = "status_effects.slowed"
	// EventImmunityGranted is emitted when a player becomes immune to hits,
	// for example after a respawn.
	EventImmunityGranted logging.EventType = "status_effects.immunity_granted"
)

type SlowedPayload struct {
	Factor     float64 `json:"factor"`
	DurationMs int64   `json:"durationMs"`
	SourceID   string  `json:"sourceId,omitempty"`
	Zone       string  `json:"zone"`
}

type ImmunityPayload struct {
	Cause      string `json:"cause"`
	DurationMs int64  `json:"durationMs"`
}

// Slowed records a slow applied to target. The actor is the shooter.
func Slowed(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload SlowedPayload) {
	publish(ctx, pub, EventSlowed, tick, actor, []logging.EntityRef{target}, payload)
}

func ImmunityGranted(ctx context.Context, pub logging.Publisher, tick uint64, player logging.EntityRef, payload ImmunityPayload) {
	publish(ctx, pub, EventImmunityGranted, tick, player, nil, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Category: "status_effects",
		Payload:  payload,
	})
}
