package client

import (
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
)

const (
	DefaultInterpolationDelay = 120 * time.Millisecond
	DefaultRetention          = 2000 * time.Millisecond
)

// BufferedSnapshot keeps only what interpolation needs from a state message,
// stamped with the local arrival time.
type BufferedSnapshot struct {
	At      time.Time
	Order   []string
	Players map[string]Vec
}

func newBufferedSnapshot(at time.Time, players []proto.PlayerState) BufferedSnapshot {
	snap := BufferedSnapshot{
		At:      at,
		Order:   make([]string, 0, len(players)),
		Players: make(map[string]Vec, len(players)),
	}
	for _, p := range players {
		snap.Order = append(snap.Order, p.ID)
		snap.Players[p.ID] = Vec{X: p.X, Y: p.Y}
	}
	return snap
}

// SnapshotBuffer is the rolling history used to render remote entities in
// the past.
type SnapshotBuffer struct {
	Retention time.Duration
	entries   []BufferedSnapshot
}

func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{Retention: DefaultRetention}
}

// Push records players as arriving at at, then prunes.
func (b *SnapshotBuffer) Push(at time.Time, players []proto.PlayerState) {
	b.entries = append(b.entries, newBufferedSnapshot(at, players))
	b.Prune(at)
}

// Prune drops entries older than the retention window relative to now.
func (b *SnapshotBuffer) Prune(now time.Time) {
	i := 0
	for i < len(b.entries) && now.Sub(b.entries[i].At) > b.Retention {
		i++
	}
	if i > 0 {
		b.entries = append(b.entries[:0], b.entries[i:]...)
	}
}

func (b *SnapshotBuffer) Clear() { b.entries = b.entries[:0] }

func (b *SnapshotBuffer) Len() int { return len(b.entries) }

// Oldest returns the arrival time of the oldest retained entry.
func (b *SnapshotBuffer) Oldest() (time.Time, bool) {
	if len(b.entries) == 0 {
		return time.Time{}, false
	}
	return b.entries[0].At, true
}

// Bracket returns the latest entry at or before t and the earliest entry at
// or after t. Outside the buffered range both fall back to the nearest end.
func (b *SnapshotBuffer) Bracket(t time.Time) (before, after *BufferedSnapshot) {
	if len(b.entries) == 0 {
		return nil, nil
	}
	for i := len(b.entries) - 1; i >= 0; i-- {
		if !b.entries[i].At.After(t) {
			before = &b.entries[i]
			break
		}
	}
	if before == nil {
		before = &b.entries[0]
	}
	for i := range b.entries {
		if !b.entries[i].At.Before(t) {
			after = &b.entries[i]
			break
		}
	}
	if after == nil {
		after = &b.entries[len(b.entries)-1]
	}
	return before, after
}

// Interpolate returns id's position at renderTime.
func (b *SnapshotBuffer) Interpolate(id string, renderTime time.Time) (Vec, bool) {
	before, after := b.Bracket(renderTime)
	return interpolateBetween(before, after, id, renderTime)
}

func interpolateBetween(before, after *BufferedSnapshot, id string, renderTime time.Time) (Vec, bool) {
	var pa, pb Vec
	var okA, okB bool
	if before != nil {
		pa, okA = before.Players[id]
	}
	if after != nil {
		pb, okB = after.Players[id]
	}
	switch {
	case okA && okB && !after.At.Equal(before.At):
		t := float64(renderTime.Sub(before.At)) / float64(after.At.Sub(before.At))
		return Vec{X: SmoothLerp(pa.X, pb.X, t), Y: SmoothLerp(pa.Y, pb.Y, t)}, true
	case okA:
		return pa, true
	case okB:
		return pb, true
	}
	return Vec{}, false
}

// Smoothstep is the ease-in/ease-out curve t*t*(3-2t) with t clamped to
// [0,1].
func Smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

// SmoothLerp blends a toward b along the smoothstep curve.
func SmoothLerp(a, b, t float64) float64 {
	return a + (b-a)*Smoothstep(t)
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
