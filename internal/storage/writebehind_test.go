package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"
)

func TestWriteBehindReadsLatestWrite(t *testing.T) {
	backend := NewMemory()
	gateway := NewWriteBehind(backend, WriteBehindConfig{Debounce: time.Hour}, WriteBehindDeps{})
	t.Cleanup(func() { _ = gateway.Close(context.Background()) })

	record := NewProgressRecord()
	record.Gold = 5
	gateway.SetProgress("alice", record)
	record.Gold = 9
	gateway.SetProgress("alice", record)

	got, ok, err := gateway.GetProgress(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("get progress: ok=%v err=%v", ok, err)
	}
	if got.Gold != 9 {
		t.Fatalf("gold = %d, want 9", got.Gold)
	}
	if _, stored, _ := backend.LoadProgress(context.Background(), "alice"); stored {
		t.Fatal("backend should not be written before the debounce elapses")
	}
}

func TestWriteBehindReturnsCopies(t *testing.T) {
	gateway := NewWriteBehind(NewMemory(), WriteBehindConfig{Debounce: time.Hour}, WriteBehindDeps{})
	t.Cleanup(func() { _ = gateway.Close(context.Background()) })

	record := NewProgressRecord()
	record.Classes["firemage"] = stats.NewClassProgress()
	gateway.SetProgress("alice", record)
	record.Classes["firemage"] = stats.ClassProgress{Level: 9}

	got, _, _ := gateway.GetProgress(context.Background(), "alice")
	if got.Classes["firemage"].Level != 1 {
		t.Fatalf("cached record aliased caller map: level %d", got.Classes["firemage"].Level)
	}
}

func TestWriteBehindFlushesAfterDebounce(t *testing.T) {
	backend := NewMemory()
	gateway := NewWriteBehind(backend, WriteBehindConfig{Debounce: 10 * time.Millisecond}, WriteBehindDeps{})
	t.Cleanup(func() { _ = gateway.Close(context.Background()) })

	gateway.SetAccount("alice", AccountRecord{Username: "alice"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := backend.LoadAccount(context.Background(), "alice"); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("account was not flushed to the backend")
}

func TestWriteBehindRetriesFailedWrites(t *testing.T) {
	backend := NewMemory()
	backend.SetFailWrites(errors.New("disk full"))
	metrics := &logging.Metrics{}
	gateway := NewWriteBehind(backend, WriteBehindConfig{Debounce: time.Hour}, WriteBehindDeps{Metrics: wrapMetrics(metrics)})
	t.Cleanup(func() { _ = gateway.Close(context.Background()) })

	gateway.SetProgress("alice", NewProgressRecord())
	if err := gateway.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if gateway.Pending() != 1 {
		t.Fatalf("pending = %d, want failed key to stay dirty", gateway.Pending())
	}
	if metrics.Value(metricWriteFailures) != 1 {
		t.Fatalf("failure metric = %d, want 1", metrics.Value(metricWriteFailures))
	}

	backend.SetFailWrites(nil)
	if err := gateway.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if gateway.Pending() != 0 {
		t.Fatalf("pending = %d after successful retry", gateway.Pending())
	}
	if _, ok, _ := backend.LoadProgress(context.Background(), "alice"); !ok {
		t.Fatal("expected progress persisted after retry")
	}
}

func TestWriteBehindCloseFlushes(t *testing.T) {
	backend := NewMemory()
	gateway := NewWriteBehind(backend, WriteBehindConfig{Debounce: time.Hour}, WriteBehindDeps{})
	gateway.SetProgress("alice", NewProgressRecord())

	if err := gateway.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok, _ := backend.LoadProgress(context.Background(), "alice"); !ok {
		t.Fatal("close should flush pending writes")
	}
}

func TestWriteBehindLoadsFromBackendOnMiss(t *testing.T) {
	backend := NewMemory()
	record := NewProgressRecord()
	record.Gold = 42
	if err := backend.SaveProgress(context.Background(), "alice", record); err != nil {
		t.Fatalf("seed backend: %v", err)
	}
	gateway := NewWriteBehind(backend, WriteBehindConfig{}, WriteBehindDeps{})
	t.Cleanup(func() { _ = gateway.Close(context.Background()) })

	got, ok, err := gateway.GetProgress(context.Background(), "alice")
	if err != nil || !ok || got.Gold != 42 {
		t.Fatalf("get progress = %+v ok=%v err=%v", got, ok, err)
	}
	if gateway.Pending() != 0 {
		t.Fatal("a read must not mark the key dirty")
	}
}

func TestMigrateProgress(t *testing.T) {
	tests := []struct {
		name    string
		record  ProgressRecord
		changed bool
		class   string
	}{
		{name: "fresh", record: NewProgressRecord(), changed: false},
		{name: "nil classes", record: ProgressRecord{}, changed: true},
		{
			name: "legacy mage",
			record: ProgressRecord{
				SelectedClass: "mage",
				Classes:       map[string]stats.ClassProgress{"mage": {Level: 4}},
			},
			changed: true,
			class:   DefaultClass,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record := tc.record
			if got := MigrateProgress(&record); got != tc.changed {
				t.Fatalf("changed = %v, want %v", got, tc.changed)
			}
			if record.Classes == nil {
				t.Fatal("classes map should be allocated")
			}
			if record.SelectedClass != tc.class {
				t.Fatalf("selected = %q, want %q", record.SelectedClass, tc.class)
			}
			if tc.class != "" && record.Classes[tc.class].Level != 4 {
				t.Fatal("legacy bag should move to the new class id")
			}
		})
	}
}

type metricsFunc struct{ m *logging.Metrics }

func (f metricsFunc) Add(key string, delta uint64)   { f.m.TelemetryAdd(key, delta) }
func (f metricsFunc) Store(key string, value uint64) { f.m.TelemetryStore(key, value) }

func wrapMetrics(m *logging.Metrics) metricsFunc { return metricsFunc{m: m} }
