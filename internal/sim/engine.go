package sim

import (
	"errors"

	"go.uber.org/zap"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/telemetry"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

// ErrMissingWorld is returned by NewEngine when no world is supplied.
var ErrMissingWorld = errors.New("sim: world is nil")

// Deps is the shared infrastructure a loop writes to. Zero values are
// replaced with no-op implementations.
type Deps struct {
	Logger  *zap.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	d.Metrics = telemetry.OrDiscard(d.Metrics)
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	return d
}

// EngineOption adjusts NewEngine. Later options win.
type EngineOption func(*engineConfig)

type engineConfig struct {
	deps    Deps
	loop    LoopConfig
	hooks   LoopHooks
	intents *IntentStore
}

func WithDeps(deps Deps) EngineOption {
	return func(cfg *engineConfig) { cfg.deps = deps }
}

func WithLoopConfig(loop LoopConfig) EngineOption {
	return func(cfg *engineConfig) { cfg.loop = loop }
}

func WithLoopHooks(hooks LoopHooks) EngineOption {
	return func(cfg *engineConfig) { cfg.hooks = hooks }
}

// WithIntents shares an intent store the caller also writes to.
func WithIntents(store *IntentStore) EngineOption {
	return func(cfg *engineConfig) { cfg.intents = store }
}

// NewEngine builds the tick loop that drives w.
func NewEngine(w *world.World, opts ...EngineOption) (*Loop, error) {
	if w == nil {
		return nil, ErrMissingWorld
	}
	cfg := engineConfig{loop: DefaultLoopConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return NewLoop(w, cfg.intents, cfg.loop, cfg.hooks, cfg.deps), nil
}
