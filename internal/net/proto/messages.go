package proto

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client message type identifiers.
const (
	TypeInput       = "input"
	TypeChooseClass = "chooseClass"
	TypeCast        = "cast"
	TypeHeartbeat   = "heartbeat"
)

// Server message type identifiers.
const (
	TypeInit          = "init"
	TypeState         = "state"
	TypePlayerJoined  = "playerJoined"
	TypePlayerLeft    = "playerLeft"
	TypeTeleport      = "teleport"
	TypeFloatText     = "floatText"
	TypeCastAck       = "castAck"
	TypeCastDenied    = "castDenied"
	TypeClassSelected = "classSelected"
)

// Number decodes leniently: JSON numbers and numeric strings are accepted,
// anything else (null, booleans, objects, NaN) leaves the value invalid
// without failing the surrounding message.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number holding v.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return nil
		}
		raw = strings.TrimSpace(unquoted)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	n.Value = value
	n.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler. Invalid numbers encode as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Float returns the value, or fallback when the number is invalid.
func (n Number) Float(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

// Ptr returns a pointer to the value, or nil when the number is invalid.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Uint32 truncates the value into a wire sequence number. Negative and
// invalid values become 0; larger values wrap the way the client counter does.
func (n Number) Uint32() uint32 {
	if !n.Valid || n.Value < 0 {
		return 0
	}
	return uint32(uint64(n.Value))
}

// Int truncates the value toward zero; invalid values become 0.
func (n Number) Int() int {
	if !n.Valid {
		return 0
	}
	return int(n.Value)
}

// ClientMessage captures an inbound websocket message from the client. Only
// the fields relevant to Type are read.
type ClientMessage struct {
	Ver     int    `json:"ver,omitempty"`
	Type    string `json:"type" jsonschema:"enum=input,enum=chooseClass,enum=cast,enum=heartbeat"`
	DX      Number `json:"dx,omitempty" jsonschema:"description=Horizontal intent in [-1,1]"`
	DY      Number `json:"dy,omitempty" jsonschema:"description=Vertical intent in [-1,1]"`
	Seq     Number `json:"seq,omitempty" jsonschema:"description=Monotonic input sequence number (uint32 wrap)"`
	ClassID string `json:"classId,omitempty" jsonschema:"description=Class identifier from the allow-list"`
	Slot    Number `json:"slot,omitempty" jsonschema:"description=Hotbar slot 1-5"`
	TargetX Number `json:"targetX,omitempty"`
	TargetY Number `json:"targetY,omitempty"`
	SentAt  Number `json:"sentAt,omitempty" jsonschema:"description=Client clock in unix milliseconds"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// EncodeClientMessage renders a client message, stamping the version.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	msg.Ver = Version
	return json.Marshal(msg)
}

// Header prefixes every server message.
type Header struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
}

func (h *Header) header() *Header {
	return h
}

// ServerMessage is implemented by every outbound payload.
type ServerMessage interface {
	MessageType() string
	header() *Header
}

// Encode stamps the header and renders msg.
func Encode(msg ServerMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("proto: nil message")
	}
	h := msg.header()
	h.Ver = Version
	h.Type = msg.MessageType()
	return json.Marshal(msg)
}

// Envelope is the first-pass decode of a server message used to dispatch on
// Type.
type Envelope struct {
	Header
	Raw json.RawMessage `json:"-"`
}

// DecodeEnvelope reads the header of a server message.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env.Header); err != nil {
		return env, err
	}
	if env.Type == "" {
		return env, fmt.Errorf("proto: message without type")
	}
	env.Raw = append(json.RawMessage(nil), payload...)
	return env, nil
}

// Decode unmarshals the envelope body into msg.
func (e Envelope) Decode(msg ServerMessage) error {
	if msg.MessageType() != e.Type {
		return fmt.Errorf("proto: cannot decode %q into %q", e.Type, msg.MessageType())
	}
	return json.Unmarshal(e.Raw, msg)
}

// PlayerState is one player entry of a snapshot. TotalLevel and RewardMult
// are only present on the recipient's own entry.
type PlayerState struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Map              string  `json:"map"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	HP               int     `json:"hp"`
	HPMax            int     `json:"hpMax"`
	Class            string  `json:"class,omitempty"`
	Level            int     `json:"level"`
	XP               int     `json:"xp"`
	Gold             int     `json:"gold"`
	LastProcessedSeq uint32  `json:"lastProcessedSeq"`
	Slowed           bool    `json:"slowed,omitempty"`
	SlowFactor       float64 `json:"slowFactor,omitempty"`
	TotalLevel       int     `json:"totalLevel,omitempty"`
	RewardMult       float64 `json:"rewardMult,omitempty"`
}

// ProjectileState is one projectile entry of a snapshot.
type ProjectileState struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Owner  string  `json:"owner"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
}

// EnemyState is one enemy entry of a snapshot.
type EnemyState struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HP         int     `json:"hp"`
	HPMax      int     `json:"hpMax"`
	Level      int     `json:"level"`
	Radius     float64 `json:"radius"`
	Aggressive bool    `json:"aggressive,omitempty"`
	State      string  `json:"state,omitempty"`
}

// Snapshot is the zone-filtered world state sent every tick.
type Snapshot struct {
	Header
	SelfID      string            `json:"selfId"`
	Map         string            `json:"map"`
	Tick        uint64            `json:"t"`
	ServerTime  int64             `json:"serverTime"`
	Players     []PlayerState     `json:"players"`
	Projectiles []ProjectileState `json:"projectiles"`
	Enemies     []EnemyState      `json:"enemies"`
}

func (*Snapshot) MessageType() string { return TypeState }

// Self returns the recipient's own entry.
func (s *Snapshot) Self() (PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == s.SelfID {
			return p, true
		}
	}
	return PlayerState{}, false
}

// WorldInfo describes the static world layout.
type WorldInfo struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	TickRate int     `json:"tickRate"`
}

// Init is sent once on admission and carries the first full zone snapshot.
type Init struct {
	Header
	SelfID    string    `json:"selfId"`
	SessionID string    `json:"sessionId"`
	World     WorldInfo `json:"world"`
	Snapshot  Snapshot  `json:"snapshot"`
}

func (*Init) MessageType() string { return TypeInit }

// PlayerJoined tells same-zone peers about a new player.
type PlayerJoined struct {
	Header
	Player PlayerState `json:"player"`
}

func (*PlayerJoined) MessageType() string { return TypePlayerJoined }

// PlayerLeft tells same-zone peers a player disconnected.
type PlayerLeft struct {
	Header
	ID string `json:"id"`
}

func (*PlayerLeft) MessageType() string { return TypePlayerLeft }

// Teleport is a discrete authoritative position change.
type Teleport struct {
	Header
	Map string  `json:"map"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

func (*Teleport) MessageType() string { return TypeTeleport }

// FloatText is a transient combat label.
type FloatText struct {
	Header
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
	TTL   int64   `json:"ttl"`
}

func (*FloatText) MessageType() string { return TypeFloatText }

// CastAck confirms an ability fired and starts the client cooldown.
type CastAck struct {
	Header
	Slot       int   `json:"slot"`
	CooldownMs int64 `json:"cooldownMs"`
}

func (*CastAck) MessageType() string { return TypeCastAck }

// CastDenied explains why an ability did not fire.
type CastDenied struct {
	Header
	Slot   int    `json:"slot"`
	Reason string `json:"reason"`
	MsLeft int64  `json:"msLeft,omitempty"`
}

func (*CastDenied) MessageType() string { return TypeCastDenied }

// ClassSelected confirms a class switch.
type ClassSelected struct {
	Header
	ID    string `json:"id"`
	Class string `json:"class"`
	Level int    `json:"level"`
}

func (*ClassSelected) MessageType() string { return TypeClassSelected }

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	Header
	ServerTime int64 `json:"serverTime"`
	ClientTime int64 `json:"clientTime"`
}

func (*Heartbeat) MessageType() string { return TypeHeartbeat }
