package client

import (
	"math"
	"testing"
	"time"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestPredictDisplacementMatchesSpeed(t *testing.T) {
	cases := []struct {
		name string
		dir  Vec
	}{
		{"right", Vec{X: 1}},
		{"diagonal", Vec{X: 1, Y: 1}},
		{"up-left", Vec{X: -1, Y: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPredictor()
			start := Vec{X: 100, Y: 100}
			end := p.Predict(start, tc.dir, 1, 0.05)
			got := math.Hypot(end.X-start.X, end.Y-start.Y)
			if !near(got, p.Speed*0.05) {
				t.Fatalf("expected displacement %.4f, got %.4f", p.Speed*0.05, got)
			}
		})
	}
}

func TestPredictAppliesSlowFactor(t *testing.T) {
	p := NewPredictor()
	end := p.Predict(Vec{}, Vec{X: 1}, 0.6, 1)
	if !near(end.X, p.Speed*0.6) {
		t.Fatalf("expected slowed displacement, got %v", end.X)
	}
}

func TestPredictIdleAppendsOneZeroEntryPerSeq(t *testing.T) {
	p := NewPredictor()
	now := time.Unix(0, 0)
	p.NextInput(now, Vec{X: 1})
	p.Predict(Vec{}, Vec{X: 1}, 1, 0.016)

	p.NextInput(now.Add(10*time.Millisecond), Vec{})
	p.Predict(Vec{}, Vec{}, 1, 0.016)
	p.Predict(Vec{}, Vec{}, 1, 0.016)

	pending := p.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected one moving and one idle entry, got %+v", pending)
	}
	if pending[1].Seq != 2 || pending[1].Distance != 0 {
		t.Fatalf("unexpected idle entry %+v", pending[1])
	}
}

func TestPredictIdleWithoutHistoryLogsNothing(t *testing.T) {
	p := NewPredictor()
	p.Predict(Vec{}, Vec{}, 1, 0.016)
	if len(p.Pending()) != 0 {
		t.Fatalf("expected empty log")
	}
}

func TestNextInputCadence(t *testing.T) {
	p := NewPredictor()
	now := time.Unix(0, 0)

	if _, ok := p.NextInput(now, Vec{}); !ok {
		t.Fatalf("expected the first call to send")
	}
	if _, ok := p.NextInput(now.Add(50*time.Millisecond), Vec{}); ok {
		t.Fatalf("expected unchanged input inside the resend interval to be held")
	}
	msg, ok := p.NextInput(now.Add(60*time.Millisecond), Vec{X: 1})
	if !ok || msg.Seq.Value != 2 || msg.DX.Value != 1 {
		t.Fatalf("expected changed input sent with seq 2, got %+v ok=%v", msg, ok)
	}
	if _, ok := p.NextInput(now.Add(160*time.Millisecond), Vec{X: 1}); ok {
		t.Fatalf("expected resend only after more than the interval")
	}
	if _, ok := p.NextInput(now.Add(161*time.Millisecond), Vec{X: 1}); !ok {
		t.Fatalf("expected resend after the interval")
	}
	if p.Seq() != 3 {
		t.Fatalf("expected seq 3, got %d", p.Seq())
	}
}

func TestSeqAtOrBeforeWraps(t *testing.T) {
	cases := []struct {
		a, b uint32
		want bool
	}{
		{1, 2, true},
		{2, 2, true},
		{3, 2, false},
		{math.MaxUint32, 0, true},
		{0, math.MaxUint32, false},
		{math.MaxUint32 - 1, 1, true},
	}
	for _, tc := range cases {
		if got := SeqAtOrBefore(tc.a, tc.b); got != tc.want {
			t.Fatalf("SeqAtOrBefore(%d, %d) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestReconcileReplayMatchesUncorrectedPrediction(t *testing.T) {
	p := NewPredictor()
	p.Tolerance = 0
	now := time.Unix(0, 0)
	pos := Vec{X: 200, Y: 200}
	dirs := []Vec{{X: 1}, {X: 1, Y: 1}, {Y: -1}, {X: -1}, {X: 1}}

	var confirmed Vec
	for i, dir := range dirs {
		p.NextInput(now.Add(time.Duration(i)*20*time.Millisecond), dir)
		pos = p.Predict(pos, dir, 1, 0.02)
		if i == 2 {
			confirmed = pos
		}
	}

	// The server processed through seq 3 and agrees with the prediction at
	// that point, offset by one pixel so the replay path runs.
	server := Vec{X: confirmed.X + 1, Y: confirmed.Y}
	got, corrected := p.Reconcile(Vec{X: pos.X + 1, Y: pos.Y + 50}, server, 3)
	if !corrected {
		t.Fatalf("expected correction")
	}
	if !near(got.X, pos.X+1) || !near(got.Y, pos.Y) {
		t.Fatalf("expected replay to land at %v, got %v", Vec{X: pos.X + 1, Y: pos.Y}, got)
	}
	for _, in := range p.Pending() {
		if SeqAtOrBefore(in.Seq, 3) {
			t.Fatalf("confirmed entry %d kept", in.Seq)
		}
	}
	if len(p.Pending()) != 2 {
		t.Fatalf("expected two pending entries, got %d", len(p.Pending()))
	}
}

func TestReconcileWithinToleranceDropsConfirmedOnly(t *testing.T) {
	p := NewPredictor()
	now := time.Unix(0, 0)
	pos := Vec{}
	for i := 0; i < 3; i++ {
		p.NextInput(now.Add(time.Duration(i)*time.Second), Vec{X: float64(i%2*2 - 1)})
		pos = p.Predict(pos, Vec{X: float64(i%2*2 - 1)}, 1, 0.01)
	}
	predicted := Vec{X: 10, Y: 10}
	got, corrected := p.Reconcile(predicted, Vec{X: 12, Y: 12}, 2)
	if corrected || got != predicted {
		t.Fatalf("expected prediction kept within tolerance, got %v corrected=%v", got, corrected)
	}
	if pending := p.Pending(); len(pending) != 1 || pending[0].Seq != 3 {
		t.Fatalf("expected only seq 3 pending, got %+v", pending)
	}
}

func TestReconcileAcrossSequenceWrap(t *testing.T) {
	p := NewPredictor()
	p.seq = math.MaxUint32 - 1
	now := time.Unix(0, 0)
	for i := 0; i < 4; i++ {
		dir := Vec{X: float64(i%2*2 - 1)}
		p.NextInput(now.Add(time.Duration(i)*time.Second), dir)
		p.Predict(Vec{}, dir, 1, 0.01)
	}
	// Sent seqs: MaxUint32, 0, 1, 2.
	p.Reconcile(Vec{}, Vec{}, 0)
	pending := p.Pending()
	if len(pending) != 2 || pending[0].Seq != 1 || pending[1].Seq != 2 {
		t.Fatalf("expected seqs 1 and 2 after wrap, got %+v", pending)
	}
}

func TestResetKeepsSequence(t *testing.T) {
	p := NewPredictor()
	p.NextInput(time.Unix(0, 0), Vec{X: 1})
	p.Predict(Vec{}, Vec{X: 1}, 1, 0.1)
	p.Reset()
	if len(p.Pending()) != 0 || p.Seq() != 1 {
		t.Fatalf("expected empty log and seq 1, got %d entries seq %d", len(p.Pending()), p.Seq())
	}
}
