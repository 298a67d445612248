package lifecycle

import (
	"context"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

const (
	// EventPlayerJoined is emitted when a player joins the world.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a player leaves the world.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventClassSelected is emitted when a player switches class.
	EventClassSelected logging.EventType = "lifecycle.class_selected"
	// EventZoneChanged is emitted when a player crosses into another zone.
	EventZoneChanged logging.EventType = "lifecycle.zone_changed"
	// EventRespawned is emitted when a defeated player returns to a checkpoint.
	EventRespawned logging.EventType = "lifecycle.respawned"
)

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	Zone   string  `json:"zone"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
	Class  string  `json:"class,omitempty"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// ClassSelectedPayload captures the chosen class and its level.
type ClassSelectedPayload struct {
	Class string `json:"class"`
	Level int    `json:"level"`
}

// ZoneChangedPayload captures a zone crossing.
type ZoneChangedPayload struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// RespawnedPayload captures where a defeated player reappeared.
type RespawnedPayload struct {
	Zone string  `json:"zone"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerJoined, tick, actor, payload, extra)
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerDisconnected, tick, actor, payload, extra)
}

// ClassSelected publishes a class switch.
func ClassSelected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ClassSelectedPayload, extra map[string]any) {
	publish(ctx, pub, EventClassSelected, tick, actor, payload, extra)
}

// ZoneChanged is debug-level; crossings happen constantly near borders.
func ZoneChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ZoneChangedPayload, extra map[string]any) {
	publishAt(ctx, pub, EventZoneChanged, logging.SeverityDebug, tick, actor, payload, extra)
}

// Respawned publishes a checkpoint respawn.
func Respawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RespawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventRespawned, tick, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	publishAt(ctx, pub, eventType, logging.SeverityInfo, tick, actor, payload, extra)
}

func publishAt(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	logging.Emit(ctx, pub, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	})
}
