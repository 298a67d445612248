package client

import (
	"math"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
)

const (
	DefaultResendInterval = 100 * time.Millisecond
	DefaultTolerance      = 4.0
)

// PendingInput is one predicted displacement not yet confirmed by the server.
// DX and DY are the unit direction and Distance the travelled pixels.
type PendingInput struct {
	Seq      uint32
	DX       float64
	DY       float64
	Distance float64
}

// SeqAtOrBefore reports whether a precedes or equals b, treating the
// sequence space as a wrapping 32-bit counter.
func SeqAtOrBefore(a, b uint32) bool {
	return int32(a-b) <= 0
}

// Predictor owns the local input sequence, the send cadence and the log of
// unconfirmed displacements.
type Predictor struct {
	Speed     float64
	Resend    time.Duration
	Tolerance float64

	seq        uint32
	lastSent   Vec
	lastSentAt time.Time
	sent       bool
	pending    []PendingInput
}

func NewPredictor() *Predictor {
	return &Predictor{
		Speed:     world.PlayerSpeed,
		Resend:    DefaultResendInterval,
		Tolerance: DefaultTolerance,
	}
}

// Seq returns the sequence number of the last input sent.
func (p *Predictor) Seq() uint32 { return p.seq }

// Pending returns a copy of the unconfirmed log.
func (p *Predictor) Pending() []PendingInput {
	return append([]PendingInput(nil), p.pending...)
}

// NextInput returns the movement message to send for dir, if the direction
// changed or the resend interval elapsed. Each send advances the sequence.
func (p *Predictor) NextInput(now time.Time, dir Vec) (proto.ClientMessage, bool) {
	changed := !p.sent || dir != p.lastSent
	if !changed && now.Sub(p.lastSentAt) <= p.Resend {
		return proto.ClientMessage{}, false
	}
	p.seq++
	p.lastSent = dir
	p.lastSentAt = now
	p.sent = true
	return proto.ClientMessage{
		Type: proto.TypeInput,
		DX:   proto.NewNumber(dir.X),
		DY:   proto.NewNumber(dir.Y),
		Seq:  proto.NewNumber(float64(p.seq)),
	}, true
}

// Predict integrates pos by dir for dt seconds and logs the displacement
// under the current sequence. An idle frame logs a single zero entry per
// sequence so ordering stays contiguous.
func (p *Predictor) Predict(pos Vec, dir Vec, slowFactor float64, dt float64) Vec {
	dx, dy := normalize(dir)
	if dx == 0 && dy == 0 {
		if n := len(p.pending); n > 0 && p.pending[n-1].Seq != p.seq {
			p.pending = append(p.pending, PendingInput{Seq: p.seq})
		}
		return pos
	}
	if slowFactor <= 0 {
		slowFactor = 1
	}
	distance := p.Speed * slowFactor * dt
	pos.X += dx * distance
	pos.Y += dy * distance
	p.pending = append(p.pending, PendingInput{Seq: p.seq, DX: dx, DY: dy, Distance: distance})
	return pos
}

// Reconcile compares the predicted position with the server's position at
// lastSeq. Confirmed entries are always dropped. Beyond the tolerance the
// prediction snaps to the server and the remaining entries are replayed.
func (p *Predictor) Reconcile(predicted, server Vec, lastSeq uint32) (Vec, bool) {
	i := 0
	for i < len(p.pending) && SeqAtOrBefore(p.pending[i].Seq, lastSeq) {
		i++
	}
	p.pending = append(p.pending[:0], p.pending[i:]...)

	if math.Hypot(predicted.X-server.X, predicted.Y-server.Y) <= p.Tolerance {
		return predicted, false
	}
	pos := server
	for _, in := range p.pending {
		pos.X += in.DX * in.Distance
		pos.Y += in.DY * in.Distance
	}
	return pos, true
}

// Reset drops every pending entry. The sequence keeps counting.
func (p *Predictor) Reset() {
	p.pending = p.pending[:0]
}

func normalize(v Vec) (float64, float64) {
	length := math.Hypot(v.X, v.Y)
	if length == 0 || math.IsNaN(length) {
		return 0, 0
	}
	return v.X / length, v.Y / length
}
