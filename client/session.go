package client

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
)

// Sender delivers client messages to the server.
type Sender interface {
	Send(msg proto.ClientMessage) error
}

type SessionConfig struct {
	InterpolationDelay time.Duration
	// CastRate caps cast requests per second; zero leaves them unthrottled.
	CastRate  rate.Limit
	CastBurst int
	Logger    *zap.Logger
}

// RenderedPlayer is a player positioned for the current frame.
type RenderedPlayer struct {
	ID    string
	Name  string
	Pos   Vec
	HP    int
	HPMax int
	Self  bool
}

// FloatText is a transient label that expires locally.
type FloatText struct {
	Pos     Vec
	Text    string
	Color   string
	Expires time.Time
}

// Frame is everything the draw step needs.
type Frame struct {
	Zone        string
	Players     []RenderedPlayer
	Projectiles []proto.ProjectileState
	Enemies     []proto.EnemyState
	FloatTexts  []FloatText
}

// Session is the client engine for one connection. It is driven by a single
// frame loop and is not safe for concurrent use.
type Session struct {
	sender      Sender
	input       *InputState
	predictor   *Predictor
	buffer      *SnapshotBuffer
	delay       time.Duration
	castLimiter *rate.Limiter
	logger      *zap.Logger

	selfID    string
	sessionID string
	zone      string
	worldInfo proto.WorldInfo

	self      Vec
	selfState proto.PlayerState
	hasSelf   bool

	players     map[string]proto.PlayerState
	projectiles []proto.ProjectileState
	enemies     []proto.EnemyState
	floatTexts  []FloatText
	cooldowns   map[int]time.Time
	lastDenial  *proto.CastDenied
	rtt         time.Duration
	corrections int
}

func NewSession(sender Sender, input *InputState, cfg SessionConfig) *Session {
	if input == nil {
		input = NewInputState()
	}
	delay := cfg.InterpolationDelay
	if delay <= 0 {
		delay = DefaultInterpolationDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		sender:    sender,
		input:     input,
		predictor: NewPredictor(),
		buffer:    NewSnapshotBuffer(),
		delay:     delay,
		logger:    logger.Named("client"),
		players:   make(map[string]proto.PlayerState),
		cooldowns: make(map[int]time.Time),
	}
	if cfg.CastRate > 0 {
		burst := cfg.CastBurst
		if burst <= 0 {
			burst = 1
		}
		s.castLimiter = rate.NewLimiter(cfg.CastRate, burst)
	}
	return s
}

func (s *Session) Input() *InputState { return s.input }
func (s *Session) Predictor() *Predictor { return s.predictor }
func (s *Session) Buffer() *SnapshotBuffer { return s.buffer }
func (s *Session) SelfID() string { return s.selfID }
func (s *Session) SessionID() string { return s.sessionID }
func (s *Session) Zone() string { return s.zone }
func (s *Session) World() proto.WorldInfo { return s.worldInfo }
func (s *Session) RTT() time.Duration { return s.rtt }
func (s *Session) Corrections() int { return s.corrections }
func (s *Session) LastDenial() *proto.CastDenied { return s.lastDenial }

// Self returns the predicted local position and the last authoritative
// record.
func (s *Session) Self() (Vec, proto.PlayerState, bool) {
	return s.self, s.selfState, s.hasSelf
}

// HandleMessage applies one server frame received at now. Unknown types are
// ignored.
func (s *Session) HandleMessage(now time.Time, data []byte) error {
	env, err := proto.DecodeEnvelope(data)
	if err != nil {
		return err
	}
	switch env.Type {
	case proto.TypeInit:
		var msg proto.Init
		if err := env.Decode(&msg); err != nil {
			return err
		}
		s.applyInit(now, msg)
	case proto.TypeState:
		var msg proto.Snapshot
		if err := env.Decode(&msg); err != nil {
			return err
		}
		s.applyState(now, msg)
	case proto.TypeTeleport:
		var msg proto.Teleport
		if err := env.Decode(&msg); err != nil {
			return err
		}
		s.applyTeleport(msg)
	case proto.TypePlayerJoined:
		var msg proto.PlayerJoined
		if err := env.Decode(&msg); err != nil {
			return err
		}
		s.players[msg.Player.ID] = msg.Player
	case proto.TypePlayerLeft:
		var msg proto.PlayerLeft
		if err := env.Decode(&msg); err != nil {
			return err
		}
		delete(s.players, msg.ID)
	case proto.TypeFloatText:
		var msg proto.FloatText
		if err := env.Decode(&msg); err != nil {
			return err
		}
		s.floatTexts = append(s.floatTexts, FloatText{
			Pos:     Vec{X: msg.X, Y: msg.Y},
			Text:    msg.Text,
			Color:   msg.Color,
			Expires: now.Add(time.Duration(msg.TTL) * time.Millisecond),
		})
	case proto.TypeCastAck:
		var msg proto.CastAck
		if err := env.Decode(&msg); err != nil {
			return err
		}
		s.cooldowns[msg.Slot] = now.Add(time.Duration(msg.CooldownMs) * time.Millisecond)
	case proto.TypeCastDenied:
		var msg proto.CastDenied
		if err := env.Decode(&msg); err != nil {
			return err
		}
		s.lastDenial = &msg
		if msg.MsLeft > 0 {
			s.cooldowns[msg.Slot] = now.Add(time.Duration(msg.MsLeft) * time.Millisecond)
		}
	case proto.TypeClassSelected:
		var msg proto.ClassSelected
		if err := env.Decode(&msg); err != nil {
			return err
		}
		if msg.ID == s.selfID {
			s.selfState.Class = msg.Class
			if msg.Level > 0 {
				s.selfState.Level = msg.Level
			}
		}
	case proto.TypeHeartbeat:
		var msg proto.Heartbeat
		if err := env.Decode(&msg); err != nil {
			return err
		}
		if msg.ClientTime > 0 {
			s.rtt = now.Sub(time.UnixMilli(msg.ClientTime))
		}
	default:
		s.logger.Debug("ignoring message", zap.String("type", env.Type))
	}
	return nil
}

func (s *Session) applyInit(now time.Time, msg proto.Init) {
	s.selfID = msg.SelfID
	s.sessionID = msg.SessionID
	s.worldInfo = msg.World
	s.buffer.Clear()
	s.predictor.Reset()
	s.hasSelf = false
	s.applyState(now, msg.Snapshot)
}

func (s *Session) applyState(now time.Time, msg proto.Snapshot) {
	s.buffer.Push(now, msg.Players)
	if msg.Map != "" {
		s.zone = msg.Map
	}
	s.players = make(map[string]proto.PlayerState, len(msg.Players))
	for _, p := range msg.Players {
		s.players[p.ID] = p
	}
	s.projectiles = msg.Projectiles
	s.enemies = msg.Enemies

	me, ok := s.players[s.selfID]
	if !ok {
		return
	}
	s.selfState = me
	server := Vec{X: me.X, Y: me.Y}
	if !s.hasSelf {
		s.self = server
		s.hasSelf = true
		return
	}
	pos, corrected := s.predictor.Reconcile(s.self, server, me.LastProcessedSeq)
	s.self = pos
	if corrected {
		s.corrections++
	}
}

func (s *Session) applyTeleport(msg proto.Teleport) {
	s.self = Vec{X: msg.X, Y: msg.Y}
	if msg.Map != "" {
		s.zone = msg.Map
	}
	s.buffer.Clear()
	s.predictor.Reset()
}

// Step is the prediction half of a frame: send the movement intent when due,
// then advance the local player by dt seconds.
func (s *Session) Step(now time.Time, dt float64) error {
	if !s.hasSelf {
		return nil
	}
	dir := s.input.Vector()
	if msg, ok := s.predictor.NextInput(now, dir); ok && s.sender != nil {
		if err := s.sender.Send(msg); err != nil {
			return fmt.Errorf("send input: %w", err)
		}
	}
	factor := 1.0
	if s.selfState.Slowed {
		factor = s.selfState.SlowFactor
		if factor <= 0 {
			factor = world.DefaultSlowFactor
		}
	}
	s.self = s.predictor.Predict(s.self, dir, factor, dt)
	return nil
}

// Render is the draw half of a frame: remote players are placed at
// now minus the interpolation delay, the local player at its prediction.
func (s *Session) Render(now time.Time) Frame {
	frame := Frame{
		Zone:        s.zone,
		Projectiles: s.projectiles,
		Enemies:     s.enemies,
	}

	renderTime := now.Add(-s.delay)
	before, after := s.buffer.Bracket(renderTime)
	base := after
	if base == nil {
		base = before
	}
	if base != nil {
		for _, id := range base.Order {
			state := s.players[id]
			rendered := RenderedPlayer{ID: id, Name: state.Name, HP: state.HP, HPMax: state.HPMax}
			if id == s.selfID && s.hasSelf {
				rendered.Pos = s.self
				rendered.Self = true
			} else {
				pos, ok := interpolateBetween(before, after, id, renderTime)
				if !ok {
					continue
				}
				rendered.Pos = pos
			}
			frame.Players = append(frame.Players, rendered)
		}
	}

	live := s.floatTexts[:0]
	for _, ft := range s.floatTexts {
		if now.Before(ft.Expires) {
			live = append(live, ft)
		}
	}
	s.floatTexts = live
	frame.FloatTexts = append([]FloatText(nil), live...)
	return frame
}

// Cast requests an ability toward target. Locked slots, local cooldowns and
// the send limiter suppress the request; false is returned without error.
func (s *Session) Cast(now time.Time, slot int, target Vec) (bool, error) {
	if !s.hasSelf || s.sender == nil {
		return false, nil
	}
	unlock := world.SlotUnlockLevel(slot)
	if unlock == 0 || s.selfState.Level < unlock {
		return false, nil
	}
	if until, ok := s.cooldowns[slot]; ok && now.Before(until) {
		return false, nil
	}
	if s.castLimiter != nil && !s.castLimiter.AllowN(now, 1) {
		return false, nil
	}
	msg := proto.ClientMessage{
		Type:    proto.TypeCast,
		Slot:    proto.NewNumber(float64(slot)),
		TargetX: proto.NewNumber(target.X),
		TargetY: proto.NewNumber(target.Y),
	}
	if err := s.sender.Send(msg); err != nil {
		return false, fmt.Errorf("send cast: %w", err)
	}
	return true, nil
}

// ChooseClass asks the server to switch the active class.
func (s *Session) ChooseClass(class string) error {
	if s.sender == nil {
		return nil
	}
	if err := s.sender.Send(proto.ClientMessage{Type: proto.TypeChooseClass, ClassID: class}); err != nil {
		return fmt.Errorf("send class selection: %w", err)
	}
	return nil
}

// Heartbeat sends a timing probe stamped with now.
func (s *Session) Heartbeat(now time.Time) error {
	if s.sender == nil {
		return nil
	}
	msg := proto.ClientMessage{Type: proto.TypeHeartbeat, SentAt: proto.NewNumber(float64(now.UnixMilli()))}
	if err := s.sender.Send(msg); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}
