// Package storage defines the persistence gateway consumed by the game server:
// account records and per-account class progress, read synchronously and
// written behind an in-process cache.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"
)

// ErrNotConfigured is returned when a backend is used before it was opened.
var ErrNotConfigured = errors.New("storage is not configured")

// AccountRecord is the persisted account entry.
type AccountRecord struct {
	Username    string    `json:"username"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// ProgressRecord is the persisted per-account progress document.
type ProgressRecord struct {
	SelectedClass string                         `json:"selectedClass,omitempty"`
	Classes       map[string]stats.ClassProgress `json:"classes"`
	Gold          int                            `json:"gold"`
}

// Clone returns a deep copy so callers may hand records across goroutines.
func (r ProgressRecord) Clone() ProgressRecord {
	cloned := r
	cloned.Classes = make(map[string]stats.ClassProgress, len(r.Classes))
	for id, bag := range r.Classes {
		cloned.Classes[id] = bag
	}
	return cloned
}

// Gateway is the contract the simulation depends on. Reads return the most
// recent value written by this process; writes never block.
type Gateway interface {
	GetAccount(ctx context.Context, id string) (AccountRecord, bool, error)
	SetAccount(id string, record AccountRecord)
	GetProgress(ctx context.Context, id string) (ProgressRecord, bool, error)
	SetProgress(id string, record ProgressRecord)
}

// Backend is a durable store sitting behind the write-behind gateway.
type Backend interface {
	LoadAccount(ctx context.Context, id string) (AccountRecord, bool, error)
	SaveAccount(ctx context.Context, id string, record AccountRecord) error
	LoadProgress(ctx context.Context, id string) (ProgressRecord, bool, error)
	SaveProgress(ctx context.Context, id string, record ProgressRecord) error
	Close() error
}
