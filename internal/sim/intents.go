package sim

import (
	"sync"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
)

// IntentStore keeps the latest movement vector per actor. Connection
// goroutines write it; the tick reads it. A newer write simply replaces the
// older one.
type IntentStore struct {
	mu      sync.RWMutex
	intents map[string]world.Intent
}

// NewIntentStore constructs an empty store.
func NewIntentStore() *IntentStore {
	return &IntentStore{intents: make(map[string]world.Intent)}
}

// Set records the latest vector for actorID. Callers are expected to have
// normalized the vector already.
func (s *IntentStore) Set(actorID string, dx, dy float64, seq uint32, receivedAt time.Time) {
	if s == nil || actorID == "" {
		return
	}
	s.mu.Lock()
	s.intents[actorID] = world.Intent{DX: dx, DY: dy, Seq: seq, ReceivedAt: receivedAt}
	s.mu.Unlock()
}

// Intent implements world.IntentSource.
func (s *IntentStore) Intent(actorID string) (world.Intent, bool) {
	if s == nil {
		return world.Intent{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[actorID]
	return intent, ok
}

// Delete forgets actorID.
func (s *IntentStore) Delete(actorID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.intents, actorID)
	s.mu.Unlock()
}

// Len reports how many actors have an intent on record.
func (s *IntentStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intents)
}

var _ world.IntentSource = (*IntentStore)(nil)
