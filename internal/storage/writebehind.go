package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/telemetry"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	loggingnetwork "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/network"
)

const (
	// DefaultDebounce is how long dirty keys accumulate before a flush.
	DefaultDebounce = 200 * time.Millisecond

	defaultSaveTimeout = 5 * time.Second

	metricFlushes       = "storage_flush_total"
	metricWrites        = "storage_write_total"
	metricWriteFailures = "storage_write_failures_total"
	metricDirtyKeys     = "storage_dirty_keys"
)

// WriteBehindConfig tunes the flush cadence.
type WriteBehindConfig struct {
	Debounce    time.Duration
	SaveTimeout time.Duration
}

func (cfg WriteBehindConfig) normalized() WriteBehindConfig {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultSaveTimeout
	}
	return cfg
}

// WriteBehindDeps bundles the observability hooks for the gateway.
type WriteBehindDeps struct {
	Logger    *zap.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

// WriteBehind answers reads from an in-process cache and persists writes to
// the backend on a background goroutine after a debounce interval. Failed
// saves stay dirty and are retried on the next flush.
type WriteBehind struct {
	backend   Backend
	cfg       WriteBehindConfig
	logger    *zap.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics

	mu            sync.Mutex
	accounts      map[string]AccountRecord
	progress      map[string]ProgressRecord
	dirtyAccounts map[string]struct{}
	dirtyProgress map[string]struct{}

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWriteBehind starts the flusher for backend.
func NewWriteBehind(backend Backend, cfg WriteBehindConfig, deps WriteBehindDeps) *WriteBehind {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	w := &WriteBehind{
		backend:       backend,
		cfg:           cfg.normalized(),
		logger:        logger.Named("storage"),
		publisher:     publisher,
		metrics:       deps.Metrics,
		accounts:      make(map[string]AccountRecord),
		progress:      make(map[string]ProgressRecord),
		dirtyAccounts: make(map[string]struct{}),
		dirtyProgress: make(map[string]struct{}),
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go w.run()
	return w
}

// GetAccount returns the cached record, loading it from the backend on a miss.
func (w *WriteBehind) GetAccount(ctx context.Context, id string) (AccountRecord, bool, error) {
	if w == nil || w.backend == nil {
		return AccountRecord{}, false, ErrNotConfigured
	}
	w.mu.Lock()
	if record, ok := w.accounts[id]; ok {
		w.mu.Unlock()
		return record, true, nil
	}
	w.mu.Unlock()

	record, ok, err := w.backend.LoadAccount(ctx, id)
	if err != nil {
		return AccountRecord{}, false, fmt.Errorf("load account %s: %w", id, err)
	}
	if !ok {
		return AccountRecord{}, false, nil
	}
	w.mu.Lock()
	// A write that raced the load wins.
	if cached, exists := w.accounts[id]; exists {
		record = cached
	} else {
		w.accounts[id] = record
	}
	w.mu.Unlock()
	return record, true, nil
}

// SetAccount caches the record and schedules it for persistence.
func (w *WriteBehind) SetAccount(id string, record AccountRecord) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.accounts[id] = record
	w.dirtyAccounts[id] = struct{}{}
	w.mu.Unlock()
	w.schedule()
}

// GetProgress returns a copy of the cached document, loading it on a miss.
func (w *WriteBehind) GetProgress(ctx context.Context, id string) (ProgressRecord, bool, error) {
	if w == nil || w.backend == nil {
		return ProgressRecord{}, false, ErrNotConfigured
	}
	w.mu.Lock()
	if record, ok := w.progress[id]; ok {
		w.mu.Unlock()
		return record.Clone(), true, nil
	}
	w.mu.Unlock()

	record, ok, err := w.backend.LoadProgress(ctx, id)
	if err != nil {
		return ProgressRecord{}, false, fmt.Errorf("load progress %s: %w", id, err)
	}
	if !ok {
		return ProgressRecord{}, false, nil
	}
	w.mu.Lock()
	if cached, exists := w.progress[id]; exists {
		record = cached
	} else {
		w.progress[id] = record.Clone()
	}
	w.mu.Unlock()
	return record.Clone(), true, nil
}

// SetProgress caches a copy of the document and schedules it for persistence.
func (w *WriteBehind) SetProgress(id string, record ProgressRecord) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.progress[id] = record.Clone()
	w.dirtyProgress[id] = struct{}{}
	w.mu.Unlock()
	w.schedule()
}

// Pending reports how many keys are waiting to be written.
func (w *WriteBehind) Pending() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirtyAccounts) + len(w.dirtyProgress)
}

// Flush writes every dirty key now. It returns the first save error; the
// failing keys remain dirty.
func (w *WriteBehind) Flush(ctx context.Context) error {
	if w == nil || w.backend == nil {
		return ErrNotConfigured
	}
	accounts, progress := w.takeDirty()
	if len(accounts) == 0 && len(progress) == 0 {
		return nil
	}
	w.add(metricFlushes, 1)

	var firstErr error
	for id, record := range accounts {
		if err := w.backend.SaveAccount(ctx, id, record); err != nil {
			w.failed("account:"+id, err)
			w.markAccountDirty(id)
			if firstErr == nil {
				firstErr = fmt.Errorf("save account %s: %w", id, err)
			}
			continue
		}
		w.add(metricWrites, 1)
	}
	for id, record := range progress {
		if err := w.backend.SaveProgress(ctx, id, record); err != nil {
			w.failed("progress:"+id, err)
			w.markProgressDirty(id)
			if firstErr == nil {
				firstErr = fmt.Errorf("save progress %s: %w", id, err)
			}
			continue
		}
		w.add(metricWrites, 1)
	}
	w.storeDirtyGauge()
	return firstErr
}

// Close stops the flusher, performs a final flush and closes the backend.
func (w *WriteBehind) Close(ctx context.Context) error {
	if w == nil {
		return nil
	}
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		<-w.done
		if flushErr := w.Flush(ctx); flushErr != nil && !errors.Is(flushErr, ErrNotConfigured) {
			err = flushErr
		}
		if w.backend != nil {
			if closeErr := w.backend.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close backend: %w", closeErr)
			}
		}
	})
	return err
}

func (w *WriteBehind) run() {
	defer close(w.done)
	timer := time.NewTimer(w.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false
	for {
		select {
		case <-w.stop:
			timer.Stop()
			return
		case <-w.wake:
			if !armed {
				timer.Reset(w.cfg.Debounce)
				armed = true
			}
		case <-timer.C:
			armed = false
			ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SaveTimeout)
			if err := w.Flush(ctx); err != nil {
				// Failed keys are still dirty; try again after another debounce.
				timer.Reset(w.cfg.Debounce)
				armed = true
			}
			cancel()
		}
	}
}

func (w *WriteBehind) schedule() {
	w.storeDirtyGauge()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *WriteBehind) takeDirty() (map[string]AccountRecord, map[string]ProgressRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var accounts map[string]AccountRecord
	if len(w.dirtyAccounts) > 0 {
		accounts = make(map[string]AccountRecord, len(w.dirtyAccounts))
		for id := range w.dirtyAccounts {
			accounts[id] = w.accounts[id]
		}
		w.dirtyAccounts = make(map[string]struct{})
	}
	var progress map[string]ProgressRecord
	if len(w.dirtyProgress) > 0 {
		progress = make(map[string]ProgressRecord, len(w.dirtyProgress))
		for id := range w.dirtyProgress {
			progress[id] = w.progress[id].Clone()
		}
		w.dirtyProgress = make(map[string]struct{})
	}
	return accounts, progress
}

func (w *WriteBehind) markAccountDirty(id string) {
	w.mu.Lock()
	w.dirtyAccounts[id] = struct{}{}
	w.mu.Unlock()
}

func (w *WriteBehind) markProgressDirty(id string) {
	w.mu.Lock()
	w.dirtyProgress[id] = struct{}{}
	w.mu.Unlock()
}

func (w *WriteBehind) failed(key string, err error) {
	w.add(metricWriteFailures, 1)
	w.logger.Warn("persist failed, will retry", zap.String("key", key), zap.Error(err))
	loggingnetwork.PersistenceFailed(
		context.Background(),
		w.publisher,
		0,
		logging.EntityRef{ID: key, Kind: logging.EntityKindWorld},
		loggingnetwork.PersistenceFailedPayload{Key: key, Error: err.Error()},
		nil,
	)
}

func (w *WriteBehind) add(key string, delta uint64) {
	if w.metrics != nil {
		w.metrics.Add(key, delta)
	}
}

func (w *WriteBehind) storeDirtyGauge() {
	if w.metrics == nil {
		return
	}
	w.metrics.Store(metricDirtyKeys, uint64(w.Pending()))
}

var _ Gateway = (*WriteBehind)(nil)
