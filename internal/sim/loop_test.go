package sim

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"
)

type recordingMetrics struct {
	mu     sync.Mutex
	values map[string]uint64
}

func (m *recordingMetrics) Add(key string, delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] += delta
}

func (m *recordingMetrics) Store(key string, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] = value
}

func (m *recordingMetrics) get(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func newTestLoop(t *testing.T, cfg LoopConfig, hooks LoopHooks) (*Loop, *recordingMetrics) {
	t.Helper()
	wcfg := world.DefaultConfig()
	wcfg.EnemiesPerZone = 0
	metrics := &recordingMetrics{}
	loop, err := NewEngine(
		world.New(wcfg, world.Deps{}),
		WithLoopConfig(cfg),
		WithLoopHooks(hooks),
		WithDeps(Deps{Metrics: metrics}),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return loop, metrics
}

func joinCommand(id string) Command {
	return Command{
		ActorID: id,
		Type:    CommandJoin,
		Join: &JoinCommand{
			Name: id,
			Progress: storage.ProgressRecord{
				SelectedClass: world.ClassFiremage,
				Classes:       map[string]stats.ClassProgress{world.ClassFiremage: stats.NewClassProgress()},
			},
		},
	}
}

func TestNewEngineRequiresWorld(t *testing.T) {
	if _, err := NewEngine(nil); err != ErrMissingWorld {
		t.Fatalf("expected ErrMissingWorld, got %v", err)
	}
}

func TestLoopAppliesCommandsBeforeStep(t *testing.T) {
	loop, metrics := newTestLoop(t, LoopConfig{}, LoopHooks{})
	now := time.Unix(100, 0)

	if ok, reason := loop.Enqueue(joinCommand("p1")); !ok {
		t.Fatalf("enqueue join rejected: %s", reason)
	}
	result := loop.Advance(LoopTickContext{Tick: 1, Now: now, Delta: 1.0 / 30})

	if len(result.Commands) != 1 {
		t.Fatalf("expected 1 drained command, got %d", len(result.Commands))
	}
	if _, ok := loop.World().Player("p1"); !ok {
		t.Fatalf("expected player joined")
	}
	if _, ok := result.Snapshots[world.DefaultZone]; !ok {
		t.Fatalf("expected a snapshot for the spawn zone")
	}
	var joined bool
	for _, n := range result.Notices {
		if n.Kind == world.NoticePlayerJoined && n.PlayerID == "p1" {
			joined = true
		}
	}
	if !joined {
		t.Fatalf("expected join notice, got %+v", result.Notices)
	}
	if metrics.get(commandsAppliedMetricKey) != 1 {
		t.Fatalf("expected applied metric")
	}
}

func TestLoopCastProducesAckAndProjectile(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{}, LoopHooks{})
	now := time.Unix(100, 0)
	loop.Enqueue(joinCommand("p1"))
	loop.Advance(LoopTickContext{Tick: 1, Now: now, Delta: 1.0 / 30})

	target := 10.0
	loop.Enqueue(Command{ActorID: "p1", Type: CommandCast, Cast: &CastCommand{Slot: 1, TargetX: &target, TargetY: &target}})
	result := loop.Advance(LoopTickContext{Tick: 2, Now: now.Add(33 * time.Millisecond), Delta: 1.0 / 30})

	var acked bool
	for _, n := range result.Notices {
		if n.Kind == world.NoticeCastAck && n.Cast.Slot == 1 {
			acked = true
		}
	}
	if !acked {
		t.Fatalf("expected cast ack, got %+v", result.Notices)
	}
	if len(loop.World().Projectiles()) != 1 {
		t.Fatalf("expected one projectile in flight")
	}
}

func TestLoopRejectsUnknownActors(t *testing.T) {
	var dropped []string
	loop, _ := newTestLoop(t, LoopConfig{}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) {
			dropped = append(dropped, reason)
		},
	})
	loop.Enqueue(Command{ActorID: "ghost", Type: CommandChooseClass, ChooseClass: &ChooseClassCommand{Class: world.ClassFiremage}})
	loop.Enqueue(Command{ActorID: "ghost", Type: CommandCast})

	result := loop.Advance(LoopTickContext{Tick: 1, Now: time.Unix(1, 0), Delta: 1.0 / 30})
	if len(result.Rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %+v", result.Rejected)
	}
	if result.Rejected[0].Reason != CommandRejectUnknownActor || result.Rejected[1].Reason != CommandRejectInvalid {
		t.Fatalf("unexpected rejection reasons %+v", result.Rejected)
	}
	if len(dropped) != 2 {
		t.Fatalf("expected drop hook per rejection, got %v", dropped)
	}
}

func TestLoopLeaveRemovesPlayerAndIntent(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{}, LoopHooks{})
	now := time.Unix(100, 0)
	loop.Enqueue(joinCommand("p1"))
	loop.Advance(LoopTickContext{Tick: 1, Now: now, Delta: 1.0 / 30})
	loop.Intents().Set("p1", 1, 0, 3, now)

	loop.Enqueue(Command{ActorID: "p1", Type: CommandLeave, Leave: &LeaveCommand{Reason: "disconnect"}})
	result := loop.Advance(LoopTickContext{Tick: 2, Now: now.Add(33 * time.Millisecond), Delta: 1.0 / 30})

	if loop.World().PlayerCount() != 0 {
		t.Fatalf("expected player removed")
	}
	if loop.Intents().Len() != 0 {
		t.Fatalf("expected intent forgotten")
	}
	if len(result.Snapshots) != 0 {
		t.Fatalf("expected no snapshots for an empty world, got %d", len(result.Snapshots))
	}
}

func TestLoopReplacingJoinDropsIntent(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{}, LoopHooks{})
	now := time.Unix(100, 0)
	loop.Enqueue(joinCommand("p1"))
	loop.Advance(LoopTickContext{Tick: 1, Now: now, Delta: 1.0 / 30})
	loop.Intents().Set("p1", 1, 0, 3, now)

	loop.Enqueue(joinCommand("p1"))
	loop.Advance(LoopTickContext{Tick: 2, Now: now.Add(33 * time.Millisecond), Delta: 1.0 / 30})

	if loop.World().PlayerCount() != 1 {
		t.Fatalf("expected one player after rejoin, got %d", loop.World().PlayerCount())
	}
	if loop.Intents().Len() != 0 {
		t.Fatalf("expected previous session's intent dropped")
	}
}

func TestLoopMovesWithLatestIntent(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{}, LoopHooks{})
	now := time.Unix(100, 0)
	loop.Enqueue(joinCommand("p1"))
	loop.Advance(LoopTickContext{Tick: 1, Now: now, Delta: 1.0 / 30})
	p, _ := loop.World().Player("p1")
	startX := p.X

	loop.Intents().Set("p1", 0, 1, 1, now)
	loop.Intents().Set("p1", 1, 0, 2, now)
	loop.Advance(LoopTickContext{Tick: 2, Now: now.Add(33 * time.Millisecond), Delta: 0.5})

	if moved := p.X - startX; math.Abs(moved-world.PlayerSpeed*0.5) > 1e-9 {
		t.Fatalf("expected movement along latest intent, moved %.3f", moved)
	}
	if p.LastProcessedSeq != 2 {
		t.Fatalf("expected seq 2 processed, got %d", p.LastProcessedSeq)
	}
}

func TestLoopPerActorLimit(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{PerActorLimit: 2}, LoopHooks{})
	cmd := Command{ActorID: "a", Type: CommandCast, Cast: &CastCommand{Slot: 1}}
	for i := 0; i < 2; i++ {
		if ok, _ := loop.Enqueue(cmd); !ok {
			t.Fatalf("expected command %d accepted", i)
		}
	}
	if ok, reason := loop.Enqueue(cmd); ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected queue_limit rejection, got ok=%v reason=%q", ok, reason)
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "b", Type: CommandCast, Cast: &CastCommand{Slot: 1}}); !ok {
		t.Fatalf("expected other actor unaffected")
	}
	loop.DrainCommands()
	if ok, _ := loop.Enqueue(cmd); !ok {
		t.Fatalf("expected limit reset after drain")
	}
}

func TestLoopQueueFull(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{CommandCapacity: 1}, LoopHooks{})
	loop.Enqueue(Command{ActorID: "a", Type: CommandCast})
	if ok, reason := loop.Enqueue(Command{ActorID: "b", Type: CommandCast}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full, got ok=%v reason=%q", ok, reason)
	}
}

func TestLoopLeaveDisplacesQueuedCast(t *testing.T) {
	var dropped []Command
	loop, _ := newTestLoop(t, LoopConfig{CommandCapacity: 1, PerActorLimit: 1}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) {
			if reason == CommandRejectQueueFull {
				dropped = append(dropped, cmd)
			}
		},
	})
	loop.Enqueue(Command{ActorID: "a", Type: CommandCast, Cast: &CastCommand{Slot: 1}})
	if ok, reason := loop.Enqueue(Command{ActorID: "a", Type: CommandLeave, Leave: &LeaveCommand{Reason: "disconnect"}}); !ok {
		t.Fatalf("expected leave accepted past the per-actor limit and a full ring, got %q", reason)
	}
	if len(dropped) != 1 || dropped[0].Type != CommandCast {
		t.Fatalf("expected the queued cast reported as dropped, got %+v", dropped)
	}
	commands := loop.DrainCommands()
	if len(commands) != 1 || commands[0].Type != CommandLeave {
		t.Fatalf("expected only the leave queued, got %+v", commands)
	}
}

func TestLoopRunInvokesAfterStep(t *testing.T) {
	results := make(chan LoopStepResult, 4)
	loop, _ := newTestLoop(t, LoopConfig{TickRate: 200}, LoopHooks{
		AfterStep: func(result LoopStepResult) {
			select {
			case results <- result:
			default:
			}
		},
	})
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		loop.Run(stop)
		close(done)
	}()

	first := <-results
	second := <-results
	close(stop)
	<-done

	if first.Tick != 1 || second.Tick != 2 {
		t.Fatalf("expected sequential ticks, got %d then %d", first.Tick, second.Tick)
	}
	if first.Budget != 5*time.Millisecond {
		t.Fatalf("expected 5ms budget, got %s", first.Budget)
	}
	if first.Delta <= 0 || first.Delta > first.MaxDelta {
		t.Fatalf("delta %.4f outside (0, %.4f]", first.Delta, first.MaxDelta)
	}
}
