package sim

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/telemetry"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
	// CommandRejectUnknownActor indicates the command targeted an actor that
	// is not in the world.
	CommandRejectUnknownActor = "unknown_actor"
	// CommandRejectInvalid indicates the command carried no payload.
	CommandRejectInvalid = "invalid_payload"
)

const (
	tickDurationMetricKey    = "sim_tick_duration_us"
	tickOverrunMetricKey     = "sim_tick_overrun_total"
	commandsAppliedMetricKey = "sim_commands_applied_total"
	commandsDroppedMetricKey = "sim_commands_dropped_total"
)

// DefaultTickRate is the authoritative simulation frequency.
const DefaultTickRate = 30

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// DefaultLoopConfig returns the production sizing.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:        DefaultTickRate,
		CatchupMaxTicks: 3,
		CommandCapacity: 1024,
		PerActorLimit:   32,
		WarningStep:     256,
	}
}

func (cfg LoopConfig) normalized() LoopConfig {
	defaults := DefaultLoopConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaults.TickRate
	}
	if cfg.CatchupMaxTicks <= 0 {
		cfg.CatchupMaxTicks = defaults.CatchupMaxTicks
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = defaults.CommandCapacity
	}
	if cfg.PerActorLimit < 0 {
		cfg.PerActorLimit = 0
	}
	if cfg.WarningStep < 0 {
		cfg.WarningStep = 0
	}
	return cfg
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// CommandRejection records a staged command the tick could not apply.
type CommandRejection struct {
	Command Command
	Reason  string
}

// LoopStepResult is everything a tick produced, handed to AfterStep.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64

	Commands  []Command
	Rejected  []CommandRejection
	Notices   []world.Notice
	Snapshots map[world.ZoneID]world.ZoneSnapshot
}

// LoopHooks are optional callbacks invoked by the loop. All of them run on the
// loop goroutine.
type LoopHooks struct {
	NextTick       func() uint64
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
// It is the only goroutine that touches the world once Run starts.
type Loop struct {
	world   *world.World
	intents *IntentStore
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	deps    Deps
	logger  *zap.Logger
	metrics telemetry.Metrics

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	tick uint64
}

// NewLoop wraps the world with a ring-buffer queue and loop.
func NewLoop(w *world.World, intents *IntentStore, cfg LoopConfig, hooks LoopHooks, deps Deps) *Loop {
	if w == nil {
		return nil
	}
	if intents == nil {
		intents = NewIntentStore()
	}
	normalized := cfg.normalized()
	deps = deps.normalized()
	return &Loop{
		world:         w,
		intents:       intents,
		buffer:        NewCommandBuffer(normalized.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        normalized,
		deps:          deps,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Deps returns the injected dependencies.
func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.deps
}

// Config returns the normalized loop configuration.
func (l *Loop) Config() LoopConfig {
	if l == nil {
		return LoopConfig{}
	}
	return l.config
}

// World exposes the simulated world. Only hooks running on the loop goroutine
// may read it while Run is active.
func (l *Loop) World() *world.World {
	if l == nil {
		return nil
	}
	return l.world
}

// Intents exposes the latest-intent store shared with connection handlers.
func (l *Loop) Intents() *IntentStore {
	if l == nil {
		return nil
	}
	return l.intents
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// DrainCommands clears the staged command queue without advancing the world.
func (l *Loop) DrainCommands() []Command {
	if l == nil {
		return nil
	}
	return l.drainCommands()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" && !cmd.Type.Lifecycle() {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	var evicted *Command
	if reason == "" {
		outcome, displaced := l.buffer.Push(cmd)
		switch outcome {
		case PushRejected:
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		case PushDisplaced:
			evicted = &displaced
		}
		if reason == "" && evicted == nil && l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	var evictedCount uint64
	if evicted != nil {
		evictedCount = l.incrementDropLocked(evicted.ActorID)
	}
	l.queueMu.Unlock()
	if evicted != nil {
		l.reportDrop(CommandRejectQueueFull, *evicted, evictedCount)
	}
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands. It
// must only be called from one goroutine at a time.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	stepCtx := world.StepContext{Tick: ctx.Tick, Now: ctx.Now, Delta: ctx.Delta}
	l.world.Begin(stepCtx)
	rejected := l.apply(commands)
	l.world.Step(stepCtx, l.intents)

	return LoopStepResult{
		Tick:      ctx.Tick,
		Now:       ctx.Now,
		Delta:     ctx.Delta,
		Commands:  commands,
		Rejected:  rejected,
		Notices:   l.world.DrainNotices(),
		Snapshots: l.world.Snapshots(),
	}
}

func (l *Loop) apply(commands []Command) []CommandRejection {
	var rejected []CommandRejection
	reject := func(cmd Command, reason string) {
		rejected = append(rejected, CommandRejection{Command: cmd, Reason: reason})
		l.reportDrop(reason, cmd, 0)
	}
	applied := 0
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandJoin:
			if cmd.Join == nil {
				reject(cmd, CommandRejectInvalid)
				continue
			}
			// A replacing join respawns the avatar; the old session's held keys go with it.
			l.intents.Delete(cmd.ActorID)
			l.world.AddPlayer(cmd.ActorID, cmd.Join.Name, cmd.Join.Progress, cmd.IssuedAt)
		case CommandLeave:
			reason := "disconnect"
			if cmd.Leave != nil && cmd.Leave.Reason != "" {
				reason = cmd.Leave.Reason
			}
			l.intents.Delete(cmd.ActorID)
			if _, ok := l.world.RemovePlayer(cmd.ActorID, reason); !ok {
				reject(cmd, CommandRejectUnknownActor)
				continue
			}
		case CommandChooseClass:
			if cmd.ChooseClass == nil {
				reject(cmd, CommandRejectInvalid)
				continue
			}
			if _, ok := l.world.Player(cmd.ActorID); !ok {
				reject(cmd, CommandRejectUnknownActor)
				continue
			}
			l.world.ChooseClass(cmd.ActorID, cmd.ChooseClass.Class)
		case CommandCast:
			if cmd.Cast == nil {
				reject(cmd, CommandRejectInvalid)
				continue
			}
			if _, ok := l.world.Player(cmd.ActorID); !ok {
				reject(cmd, CommandRejectUnknownActor)
				continue
			}
			l.world.Cast(cmd.ActorID, world.CastRequest{
				Slot:    cmd.Cast.Slot,
				TargetX: cmd.Cast.TargetX,
				TargetY: cmd.Cast.TargetY,
			})
		default:
			reject(cmd, CommandRejectInvalid)
			continue
		}
		applied++
	}
	if applied > 0 {
		l.metrics.Add(commandsAppliedMetricKey, uint64(applied))
	}
	return rejected
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	clock := l.deps.Clock
	last := clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}
	budgetDuration := time.Second / time.Duration(tickRate)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			var tick uint64
			if l.hooks.NextTick != nil {
				tick = l.hooks.NextTick()
			} else {
				l.tick++
				tick = l.tick
			}

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt
			l.recordDuration(result)

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) recordDuration(result LoopStepResult) {
	l.metrics.Store(tickDurationMetricKey, uint64(result.Duration.Microseconds()))
	if result.Budget > 0 && result.Duration > result.Budget {
		l.metrics.Add(tickOverrunMetricKey, 1)
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	l.metrics.Add(commandsDroppedMetricKey, 1)
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		l.logger.Warn("dropping commands over the per-actor limit",
			zap.String("actor", cmd.ActorID),
			zap.String("type", string(cmd.Type)),
			zap.Uint64("count", count),
			zap.Int("limit", l.config.PerActorLimit),
		)
	}
}
