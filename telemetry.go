package server

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/telemetry"
)

type telemetryCounters struct {
	bytesSent             atomic.Uint64
	entitiesSent          atomic.Uint64
	tickDurationMillis    atomic.Int64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastEntities atomic.Uint64
	snapshotsDropped      atomic.Uint64
	inputsAccepted        atomic.Uint64
	inputsRateLimited     atomic.Uint64
	commandsDropped       atomic.Uint64
	tickOverruns          atomic.Uint64
	overrunStreak         atomic.Uint64
	debug                 bool
	logger                *zap.Logger
	metrics               telemetry.Metrics
}

// TelemetrySnapshot is the counter block reported by /diagnostics.
type TelemetrySnapshot struct {
	BytesSent         uint64 `json:"bytesSent"`
	EntitiesSent      uint64 `json:"entitiesSent"`
	TickDuration      int64  `json:"tickDurationMillis"`
	SnapshotsDropped  uint64 `json:"snapshotsDropped"`
	InputsAccepted    uint64 `json:"inputsAccepted"`
	InputsRateLimited uint64 `json:"inputsRateLimited"`
	CommandsDropped   uint64 `json:"commandsDropped"`
	TickOverruns      uint64 `json:"tickOverruns"`
}

func newTelemetryCounters(debug bool, logger *zap.Logger, metrics telemetry.Metrics) *telemetryCounters {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &telemetryCounters{debug: debug, logger: logger, metrics: metrics}
}

func (t *telemetryCounters) RecordBroadcast(bytes, entities int) {
	if bytes < 0 {
		bytes = 0
	}
	if entities < 0 {
		entities = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.entitiesSent.Add(uint64(entities))
	t.lastBroadcastBytes.Store(uint64(bytes))
	t.lastBroadcastEntities.Store(uint64(entities))
	if t.metrics != nil {
		t.metrics.Add("broadcast_bytes_total", uint64(bytes))
	}
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		t.logger.Debug("[telemetry] tick",
			zap.Int64("tickMillis", millis),
			zap.Uint64("bytes", t.lastBroadcastBytes.Load()),
			zap.Uint64("totalBytes", t.bytesSent.Load()),
			zap.Uint64("entities", t.lastBroadcastEntities.Load()),
			zap.Uint64("totalEntities", t.entitiesSent.Load()),
		)
	}
}

// RecordOverrun tracks consecutive budget breaches and returns the streak.
func (t *telemetryCounters) RecordOverrun(over bool) uint64 {
	if !over {
		t.overrunStreak.Store(0)
		return 0
	}
	t.tickOverruns.Add(1)
	return t.overrunStreak.Add(1)
}

func (t *telemetryCounters) RecordSnapshotDropped() {
	t.snapshotsDropped.Add(1)
	if t.metrics != nil {
		t.metrics.Add("snapshots_dropped_total", 1)
	}
}

func (t *telemetryCounters) RecordInput(accepted bool) {
	if accepted {
		t.inputsAccepted.Add(1)
		return
	}
	t.inputsRateLimited.Add(1)
	if t.metrics != nil {
		t.metrics.Add("inputs_rate_limited_total", 1)
	}
}

func (t *telemetryCounters) RecordCommandDropped() {
	t.commandsDropped.Add(1)
}

func (t *telemetryCounters) DebugEnabled() bool {
	return t.debug
}

func (t *telemetryCounters) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		BytesSent:         t.bytesSent.Load(),
		EntitiesSent:      t.entitiesSent.Load(),
		TickDuration:      t.tickDurationMillis.Load(),
		SnapshotsDropped:  t.snapshotsDropped.Load(),
		InputsAccepted:    t.inputsAccepted.Load(),
		InputsRateLimited: t.inputsRateLimited.Load(),
		CommandsDropped:   t.commandsDropped.Load(),
		TickOverruns:      t.tickOverruns.Load(),
	}
}
