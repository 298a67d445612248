package logging

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRouterBuffer = 512
	minSinkBuffer       = 32
	maxSinkBuffer       = 1024
	maxRetryExponent    = 5
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink receives events from a single worker goroutine.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router is the asynchronous event bus behind Publisher. Publish never
// blocks: a full queue drops the event and counts it. One dispatcher stamps
// time and router fields, then hands a copy to every sink worker.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *zap.Logger
	fields   map[string]any

	queue   chan Event
	workers []*sinkWorker
	stop    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	nextDropLog  atomic.Int64
}

// RouterStats reports router throughput for diagnostics.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
	Sinks        []SinkStats
}

// SinkStats is one sink worker's counters.
type SinkStats struct {
	Name    string
	Written uint64
	Failed  uint64
	Dropped uint64
}

func NewRouter(clock Clock, cfg Config, logger *zap.Logger, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultRouterBuffer
	}
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: logger.Named("logging"),
		fields:   cfg.CloneFields(),
		queue:    make(chan Event, size),
		stop:     make(chan struct{}),
	}

	sinkBuffer := min(max(size, minSinkBuffer), maxSinkBuffer)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.workers = append(r.workers, &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, sinkBuffer),
			fallback: r.fallback,
		})
	}

	for _, w := range r.workers {
		r.wg.Add(1)
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(w)
	}
	r.wg.Add(1)
	go r.dispatch()
	return r, nil
}

func (r *Router) dispatch() {
	defer func() {
		for _, w := range r.workers {
			close(w.events)
		}
		r.wg.Done()
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = event.WithDefaults(r.fields)
	r.eventsTotal.Add(1)
	for _, w := range r.workers {
		w.enqueue(event)
	}
}

// Publish implements Publisher. Events without a type or below the minimum
// severity are discarded.
func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || event.Severity < r.cfg.MinimumSeverity || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.drop(event)
	}
}

func (r *Router) drop(event Event) {
	dropped := r.droppedTotal.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now < next || !r.nextDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
		return
	}
	r.fallback.Warn("dropping event",
		zap.String("type", string(event.Type)),
		zap.Uint64("tick", event.Tick),
		zap.Uint64("dropped", dropped),
	)
}

// Close stops intake, drains queued events into the sinks and closes them.
// A second call waits for ctx and reports its error.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	close(r.stop)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
	for _, w := range r.workers {
		stats.Sinks = append(stats.Sinks, SinkStats{
			Name:    w.name,
			Written: w.written.Load(),
			Failed:  w.failed.Load(),
			Dropped: w.dropped.Load(),
		})
	}
	return stats
}

// Sink returns the sink registered under name, or nil.
func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

// sinkWorker serialises writes to one sink. After a failed write it backs
// off exponentially, capped at 32s, before the next attempt.
type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *zap.Logger

	failures  int
	nextRetry time.Time

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- event.Clone():
	default:
		w.dropped.Add(1)
		w.fallback.Warn("sink backlog full, dropping event",
			zap.String("sink", w.name),
			zap.String("type", string(event.Type)),
		)
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if w.failures > 0 {
			if wait := time.Until(w.nextRetry); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := w.sink.Write(event); err != nil {
			w.fail(err)
			continue
		}
		w.written.Add(1)
		w.failures = 0
	}
}

func (w *sinkWorker) fail(err error) {
	w.failed.Add(1)
	w.failures++
	delay := time.Duration(1<<min(w.failures, maxRetryExponent)) * time.Second
	w.nextRetry = time.Now().Add(delay)
	w.fallback.Warn("sink write failed",
		zap.String("sink", w.name),
		zap.Error(err),
		zap.Duration("retryIn", delay),
	)
}
