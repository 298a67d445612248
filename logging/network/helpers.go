package network

import (
	"context"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

const (
	// EventRateLimited is emitted when a connection exceeds its message budget.
	EventRateLimited logging.EventType = "network.rate_limited"
	// EventAdmissionRejected is emitted when a handshake is refused.
	EventAdmissionRejected logging.EventType = "network.admission_rejected"
	// EventCommandDropped is emitted when the tick loop refuses a staged command.
	EventCommandDropped logging.EventType = "network.command_dropped"
	// EventPersistenceFailed is emitted when a progress write fails.
	EventPersistenceFailed logging.EventType = "network.persistence_failed"
)

// RateLimitedPayload captures which budget overflowed.
type RateLimitedPayload struct {
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
	Count int    `json:"count"`
}

// AdmissionRejectedPayload captures why a handshake failed.
type AdmissionRejectedPayload struct {
	Reason     string `json:"reason"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
}

// CommandDroppedPayload captures the loop's rejection reason.
type CommandDroppedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// PersistenceFailedPayload captures the failing key and error text.
type PersistenceFailedPayload struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// RateLimited publishes a debug event when a message is dropped by a budget.
func RateLimited(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RateLimitedPayload, extra map[string]any) {
	publish(ctx, pub, EventRateLimited, logging.SeverityDebug, tick, actor, payload, extra)
}

// AdmissionRejected publishes a warning for a refused handshake.
func AdmissionRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AdmissionRejectedPayload, extra map[string]any) {
	publish(ctx, pub, EventAdmissionRejected, logging.SeverityWarn, tick, actor, payload, extra)
}

// CommandDropped publishes a warning when the loop rejects a command.
func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandDroppedPayload, extra map[string]any) {
	publish(ctx, pub, EventCommandDropped, logging.SeverityWarn, tick, actor, payload, extra)
}

// PersistenceFailed publishes an error when the write-behind flush fails.
func PersistenceFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PersistenceFailedPayload, extra map[string]any) {
	publish(ctx, pub, EventPersistenceFailed, logging.SeverityError, tick, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	logging.Emit(ctx, pub, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	})
}
