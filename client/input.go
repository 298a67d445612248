// Package client is the headless prediction, reconciliation and
// interpolation engine that talks to the authoritative server.
package client

import "sync"

// Key is a directional input.
type Key string

const (
	KeyUp    Key = "up"
	KeyDown  Key = "down"
	KeyLeft  Key = "left"
	KeyRight Key = "right"
)

// Vec is a world-space position or direction.
type Vec struct {
	X float64
	Y float64
}

// InputState tracks which directional keys are currently held. The movement
// vector is derived from held keys, never from a queue of presses.
type InputState struct {
	mu   sync.Mutex
	held map[Key]bool
}

func NewInputState() *InputState {
	return &InputState{held: make(map[Key]bool)}
}

func (s *InputState) Press(k Key) {
	s.mu.Lock()
	s.held[k] = true
	s.mu.Unlock()
}

func (s *InputState) Release(k Key) {
	s.mu.Lock()
	delete(s.held, k)
	s.mu.Unlock()
}

// Set replaces the held set.
func (s *InputState) Set(keys ...Key) {
	s.mu.Lock()
	s.held = make(map[Key]bool, len(keys))
	for _, k := range keys {
		s.held[k] = true
	}
	s.mu.Unlock()
}

// Vector returns the raw, unnormalized direction of the held keys. Opposing
// keys cancel.
func (s *InputState) Vector() Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v Vec
	if s.held[KeyUp] {
		v.Y--
	}
	if s.held[KeyDown] {
		v.Y++
	}
	if s.held[KeyLeft] {
		v.X--
	}
	if s.held[KeyRight] {
		v.X++
	}
	return v
}
