// Package logging carries gameplay and system events from the simulation to
// pluggable sinks. Domain helpers live in the subpackages.
package logging

import (
	"context"
	"maps"
	"slices"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

var severityNames = [...]string{"debug", "info", "warn", "error"}

func (s Severity) String() string {
	if s < SeverityDebug || s > SeverityError {
		return "unknown"
	}
	return severityNames[s]
}

// ParseSeverity maps a level name onto a severity, defaulting to info.
func ParseSeverity(level string) Severity {
	if level == "warning" {
		return SeverityWarn
	}
	if i := slices.Index(severityNames[:], level); i >= 0 {
		return Severity(i)
	}
	return SeverityInfo
}

type EntityKind string

const (
	EntityKindPlayer     EntityKind = "player"
	EntityKindEnemy      EntityKind = "enemy"
	EntityKindProjectile EntityKind = "projectile"
	EntityKindWorld      EntityKind = "world"
)

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

func PlayerRef(id string) EntityRef { return EntityRef{ID: id, Kind: EntityKindPlayer} }
func EnemyRef(id string) EntityRef { return EntityRef{ID: id, Kind: EntityKindEnemy} }
func ProjectileRef(id string) EntityRef { return EntityRef{ID: id, Kind: EntityKindProjectile} }

// WorldRef stands in for the simulation itself as an actor.
var WorldRef = EntityRef{ID: "loop", Kind: EntityKindWorld}

const CategoryCombat = "combat"

// Event is one structured record. Session is set when the event concerns a
// specific websocket session rather than just the account.
type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Session  string         `json:"session,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Clone copies the slices and maps so sinks can retain the event.
func (e Event) Clone() Event {
	e.Targets = slices.Clone(e.Targets)
	e.Extra = maps.Clone(e.Extra)
	return e
}

// WithDefaults returns a clone with every key in fields that the event did
// not set itself added to Extra.
func (e Event) WithDefaults(fields map[string]any) Event {
	e = e.Clone()
	if len(fields) == 0 {
		return e
	}
	if e.Extra == nil {
		e.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, set := e.Extra[k]; !set {
			e.Extra[k] = v
		}
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}

// Emit publishes event unless pub is nil.
func Emit(ctx context.Context, pub Publisher, event Event) {
	if pub != nil {
		pub.Publish(ctx, event)
	}
}

func NopPublisher() Publisher { return PublisherFunc(nil) }
