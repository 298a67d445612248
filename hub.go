// Package server wires the authoritative world and tick loop to connected
// subscribers: admission, session fencing, notice routing and per-zone
// snapshot fan-out.
package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/intake"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/sim"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/telemetry"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	loggingnetwork "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/network"
	loggingsimulation "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/simulation"
)

// ErrMissingAccount is returned when admission is attempted without an id.
var ErrMissingAccount = errors.New("server: missing account id")

// Hub owns the world, the tick loop and every live subscriber.
type Hub struct {
	config    HubConfig
	world     *world.World
	intents   *sim.IntentStore
	engine    *sim.Loop
	store     storage.Gateway
	publisher logging.Publisher
	logger    *zap.Logger
	clock     logging.Clock
	telemetry *telemetryCounters

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	diagnostics []DiagnosticsPlayer

	tick atomic.Uint64
}

// Admission describes a connection whose credential already verified.
type Admission struct {
	AccountID string
	Name      string
	SessionID string
}

// DiagnosticsPlayer is one row of the /diagnostics player table.
type DiagnosticsPlayer struct {
	ID               string `json:"id"`
	Zone             string `json:"zone"`
	Class            string `json:"class,omitempty"`
	Level            int    `json:"level"`
	LastProcessedSeq uint32 `json:"lastProcessedSeq"`
	LastHeartbeat    int64  `json:"lastHeartbeat"`
	RTTMillis        int64  `json:"rttMillis"`
}

// NewHub builds the world and loop around store. store may be nil, in which
// case progress lives only in memory.
func NewHub(cfg HubConfig, store storage.Gateway, publisher logging.Publisher) (*Hub, error) {
	normalized := cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if store == nil {
		store = storage.NewWriteBehind(storage.NewMemory(), storage.WriteBehindConfig{}, storage.WriteBehindDeps{})
	}

	metrics := telemetry.FromRegistry(normalized.Metrics)
	hub := &Hub{
		config:      normalized,
		store:       store,
		publisher:   publisher,
		logger:      normalized.Logger.Named("hub"),
		clock:       normalized.Clock,
		subscribers: make(map[string]*Subscriber),
	}
	hub.telemetry = newTelemetryCounters(normalized.DebugTelemetry, hub.logger, metrics)
	hub.world = world.New(normalized.World, world.Deps{
		Publisher: publisher,
		RNG:       normalized.RNG,
		Progress:  store,
	})
	hub.intents = sim.NewIntentStore()

	engine, err := sim.NewEngine(
		hub.world,
		sim.WithIntents(hub.intents),
		sim.WithLoopConfig(normalized.Loop),
		sim.WithDeps(sim.Deps{
			Logger:  normalized.Logger.Named("sim"),
			Metrics: metrics,
			Clock:   normalized.Clock,
		}),
		sim.WithLoopHooks(sim.LoopHooks{
			NextTick:      hub.nextTick,
			AfterStep:     hub.afterStep,
			OnCommandDrop: hub.onCommandDrop,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("construct loop: %w", err)
	}
	hub.engine = engine
	return hub, nil
}

// Engine exposes the tick loop.
func (h *Hub) Engine() *sim.Loop { return h.engine }

// Intents exposes the latest-intent store.
func (h *Hub) Intents() *sim.IntentStore { return h.intents }

// Tick returns the last completed tick.
func (h *Hub) Tick() uint64 { return h.tick.Load() }

// TickRate returns the configured simulation frequency.
func (h *Hub) TickRate() int { return h.engine.Config().TickRate }

// Publisher returns the gameplay event publisher.
func (h *Hub) Publisher() logging.Publisher { return h.publisher }

// Metrics returns the shared counter table.
func (h *Hub) Metrics() *logging.Metrics { return h.config.Metrics }

func (h *Hub) nextTick() uint64 {
	return h.tick.Load() + 1
}

// Admit creates or refreshes the account, loads its progress and queues the
// join. The returned subscriber receives the initial snapshot after the next
// tick. A previous session for the same account is closed and fenced.
func (h *Hub) Admit(ctx context.Context, adm Admission) (*Subscriber, error) {
	accountID := strings.TrimSpace(adm.AccountID)
	if accountID == "" {
		return nil, ErrMissingAccount
	}
	now := h.clock.Now()

	account, found, err := h.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}
	if !found {
		account = storage.AccountRecord{Username: accountID, CreatedAt: now}
	}
	account.LastLoginAt = now
	h.store.SetAccount(accountID, account)

	progress, found, err := h.store.GetProgress(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", accountID, err)
	}
	if !found {
		progress = storage.NewProgressRecord()
		h.store.SetProgress(accountID, progress)
	} else if storage.MigrateProgress(&progress) {
		h.store.SetProgress(accountID, progress)
	}

	sub := newSubscriber(accountID, adm.SessionID, h.config.OutboundQueue, now)

	h.mu.Lock()
	previous := h.subscribers[accountID]
	h.subscribers[accountID] = sub
	h.mu.Unlock()
	if previous != nil {
		previous.Close()
		h.logger.Info("session replaced",
			zap.String("player", accountID),
			zap.String("previousSession", previous.SessionID()),
			zap.String("session", adm.SessionID),
		)
	}

	name := adm.Name
	if name == "" {
		name = account.Username
	}
	ok, reason := h.engine.Enqueue(sim.Command{
		OriginTick: h.Tick(),
		ActorID:    accountID,
		Type:       sim.CommandJoin,
		IssuedAt:   now,
		Join:       &sim.JoinCommand{Name: name, SessionID: adm.SessionID, Progress: progress},
	})
	if !ok {
		h.mu.Lock()
		if h.subscribers[accountID] == sub {
			delete(h.subscribers, accountID)
		}
		h.mu.Unlock()
		sub.Close()
		return nil, fmt.Errorf("queue join for %s: %s", accountID, reason)
	}
	return sub, nil
}

// Disconnect drops the subscriber and queues the player's removal. A session
// that was already replaced is ignored and false is returned.
func (h *Hub) Disconnect(playerID, sessionID, reason string) bool {
	h.mu.Lock()
	sub, ok := h.subscribers[playerID]
	if !ok || sub.SessionID() != sessionID {
		h.mu.Unlock()
		return false
	}
	delete(h.subscribers, playerID)
	h.mu.Unlock()
	sub.Close()

	if reason == "" {
		reason = leaveReasonDisconnect
	}
	h.engine.Enqueue(sim.Command{
		OriginTick: h.Tick(),
		ActorID:    playerID,
		Type:       sim.CommandLeave,
		IssuedAt:   h.clock.Now(),
		Leave:      &sim.LeaveCommand{Reason: reason, SessionID: sessionID},
	})
	return true
}

// Subscriber returns the live subscriber for playerID.
func (h *Hub) Subscriber(playerID string) (*Subscriber, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subscribers[playerID]
	return sub, ok
}

// SubscriberCount reports how many connections are live.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// CommandContext returns the staging context a connection uses for its
// messages.
func (h *Hub) CommandContext(limiter *intake.Limiter) intake.CommandContext {
	return intake.CommandContext{
		Engine:  h.engine,
		Intents: h.intents,
		Limiter: limiter,
		Tick:    h.Tick,
		Now:     h.clock.Now,
	}
}

// RecordIntake feeds the staging outcome of one client message into the
// telemetry counters.
func (h *Hub) RecordIntake(playerID string, accepted bool, reason string) {
	switch {
	case accepted:
		h.telemetry.RecordInput(true)
	case reason == intake.RejectRateLimited:
		h.telemetry.RecordInput(false)
	}
}

// UpdateHeartbeat records a heartbeat for the live session and returns the
// latest RTT.
func (h *Hub) UpdateHeartbeat(playerID, sessionID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	sub, ok := h.Subscriber(playerID)
	if !ok || sub.SessionID() != sessionID {
		return 0, false
	}
	return sub.recordHeartbeat(receivedAt, clientSent), true
}

// RunSimulation drives the tick loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.engine.Run(stop)
}

// Advance runs one tick synchronously. It must not be used while
// RunSimulation is active.
func (h *Hub) Advance(now time.Time, dt float64) sim.LoopStepResult {
	tick := h.nextTick()
	start := h.clock.Now()
	result := h.engine.Advance(sim.LoopTickContext{Tick: tick, Now: now, Delta: dt})
	result.Duration = h.clock.Now().Sub(start)
	result.Budget = time.Second / time.Duration(h.TickRate())
	h.afterStep(result)
	return result
}

// Shutdown removes every player from the world, persisting their progress,
// and closes all subscribers. The loop must already be stopped.
func (h *Hub) Shutdown(reason string) {
	for _, p := range h.world.Players() {
		h.world.RemovePlayer(p.ID, reason)
	}
	h.world.DrainNotices()

	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs = append(subs, sub)
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// DiagnosticsSnapshot returns the player table captured after the last tick.
func (h *Hub) DiagnosticsSnapshot() []DiagnosticsPlayer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]DiagnosticsPlayer(nil), h.diagnostics...)
}

// TelemetrySnapshot returns the broadcast and intake counters.
func (h *Hub) TelemetrySnapshot() TelemetrySnapshot {
	return h.telemetry.Snapshot()
}

func (h *Hub) onCommandDrop(reason string, cmd sim.Command) {
	h.telemetry.RecordCommandDropped()
	loggingnetwork.CommandDropped(context.Background(), h.publisher, h.Tick(), logging.PlayerRef(cmd.ActorID), loggingnetwork.CommandDroppedPayload{
		Command: string(cmd.Type),
		Reason:  reason,
	}, nil)
}

// afterStep runs on the loop goroutine: it sends initial snapshots to newly
// joined subscribers, routes notices, then fans out one zone snapshot per
// subscriber.
func (h *Hub) afterStep(result sim.LoopStepResult) {
	h.tick.Store(result.Tick)
	h.telemetry.RecordTickDuration(result.Duration)
	h.checkTickBudget(result)

	zoneOf := make(map[string]world.ZoneID)
	for zone, snap := range result.Snapshots {
		for _, p := range snap.Players {
			zoneOf[p.ID] = zone
		}
	}

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].PlayerID() < subs[j].PlayerID() })

	initialized := make(map[*Subscriber]bool)
	for _, sub := range subs {
		if sub.initSent.Load() {
			continue
		}
		zone, ok := zoneOf[sub.PlayerID()]
		if !ok {
			continue
		}
		if h.sendInit(sub, result.Snapshots[zone]) {
			initialized[sub] = true
		}
	}

	for _, notice := range result.Notices {
		h.routeNotice(notice, subs, zoneOf)
	}

	for _, sub := range subs {
		if !sub.initSent.Load() || initialized[sub] {
			continue
		}
		zone, ok := zoneOf[sub.PlayerID()]
		if !ok {
			continue
		}
		msg := snapshotMessage(sub.PlayerID(), result.Snapshots[zone].For(h.world, sub.PlayerID()))
		data, err := proto.Encode(&msg)
		if err != nil {
			h.logger.Error("failed to marshal state message", zap.String("player", sub.PlayerID()), zap.Error(err))
			continue
		}
		if !sub.Enqueue(data) {
			h.telemetry.RecordSnapshotDropped()
			continue
		}
		h.telemetry.RecordBroadcast(len(data), len(msg.Players)+len(msg.Projectiles)+len(msg.Enemies))
	}

	h.refreshDiagnostics(result.Snapshots, subs)
}

func (h *Hub) sendInit(sub *Subscriber, snap world.ZoneSnapshot) bool {
	width, height := h.world.Dimensions()
	state := snapshotMessage(sub.PlayerID(), snap.For(h.world, sub.PlayerID()))
	state.Header = proto.Header{Ver: proto.Version, Type: proto.TypeState}
	msg := proto.Init{
		SelfID:    sub.PlayerID(),
		SessionID: sub.SessionID(),
		World:     proto.WorldInfo{Width: width, Height: height, TickRate: h.TickRate()},
		Snapshot:  state,
	}
	data, err := proto.Encode(&msg)
	if err != nil {
		h.logger.Error("failed to marshal initial state", zap.String("player", sub.PlayerID()), zap.Error(err))
		return false
	}
	if !sub.Enqueue(data) {
		return false
	}
	sub.initSent.Store(true)
	h.telemetry.RecordBroadcast(len(data), len(state.Players)+len(state.Projectiles)+len(state.Enemies))
	return true
}

func (h *Hub) routeNotice(notice world.Notice, subs []*Subscriber, zoneOf map[string]world.ZoneID) {
	msg := noticeMessage(notice)
	if msg == nil {
		return
	}
	data, err := proto.Encode(msg)
	if err != nil {
		h.logger.Error("failed to marshal notice", zap.String("kind", string(notice.Kind)), zap.Error(err))
		return
	}

	switch notice.Kind {
	case world.NoticeTeleport, world.NoticeCastAck, world.NoticeCastDenied, world.NoticeClassSelected:
		for _, sub := range subs {
			if sub.PlayerID() == notice.PlayerID && sub.initSent.Load() {
				sub.Enqueue(data)
			}
		}
	default:
		for _, sub := range subs {
			if !sub.initSent.Load() || zoneOf[sub.PlayerID()] != notice.Zone {
				continue
			}
			if notice.PlayerID != "" && sub.PlayerID() == notice.PlayerID {
				continue
			}
			sub.Enqueue(data)
		}
	}
}

func (h *Hub) checkTickBudget(result sim.LoopStepResult) {
	if result.Budget <= 0 {
		return
	}
	over := result.Duration > result.Budget
	streak := h.telemetry.RecordOverrun(over)
	if !over {
		return
	}
	ratio := float64(result.Duration) / float64(result.Budget)
	payload := loggingsimulation.TickBudgetPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          ratio,
		Streak:         streak,
		Zones:          len(result.Snapshots),
		Commands:       len(result.Commands),
	}
	for _, snap := range result.Snapshots {
		payload.Players += len(snap.Players)
		payload.Enemies += len(snap.Enemies)
		payload.Projectiles += len(snap.Projectiles)
	}
	ctx := context.Background()
	loggingsimulation.TickBudgetOverrun(ctx, h.publisher, result.Tick, payload, false)
	if streak >= tickBudgetAlarmMinStreak && ratio >= tickBudgetAlarmMinRatio {
		loggingsimulation.TickBudgetOverrun(ctx, h.publisher, result.Tick, payload, true)
	}
}

func (h *Hub) refreshDiagnostics(snapshots map[world.ZoneID]world.ZoneSnapshot, subs []*Subscriber) {
	bySub := make(map[string]*Subscriber, len(subs))
	for _, sub := range subs {
		bySub[sub.PlayerID()] = sub
	}
	rows := make([]DiagnosticsPlayer, 0, len(bySub))
	for zone, snap := range snapshots {
		for _, p := range snap.Players {
			row := DiagnosticsPlayer{
				ID:               p.ID,
				Zone:             string(zone),
				Class:            p.Class,
				Level:            p.Level,
				LastProcessedSeq: p.LastProcessedSeq,
			}
			if sub, ok := bySub[p.ID]; ok {
				seen, rtt := sub.heartbeat()
				row.LastHeartbeat = seen.UnixMilli()
				row.RTTMillis = rtt.Milliseconds()
			}
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	h.mu.Lock()
	h.diagnostics = rows
	h.mu.Unlock()
}
