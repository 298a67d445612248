package world

import "time"

// NoticeKind enumerates the discrete messages a step can produce.
type NoticeKind string

const (
	// NoticeTeleport goes to PlayerID only.
	NoticeTeleport NoticeKind = "teleport"
	// NoticeFloatText goes to every player in Zone.
	NoticeFloatText NoticeKind = "floatText"
	// NoticeCastAck goes to PlayerID only.
	NoticeCastAck NoticeKind = "castAck"
	// NoticeCastDenied goes to PlayerID only.
	NoticeCastDenied NoticeKind = "castDenied"
	// NoticeClassSelected goes to PlayerID only.
	NoticeClassSelected NoticeKind = "classSelected"
	// NoticePlayerJoined goes to every other player in Zone.
	NoticePlayerJoined NoticeKind = "playerJoined"
	// NoticePlayerLeft goes to every other player in Zone.
	NoticePlayerLeft NoticeKind = "playerLeft"
)

// Notice is a discrete event routed to one player or one zone. Exactly one of
// the payload pointers is set, matching Kind.
type Notice struct {
	Kind     NoticeKind
	PlayerID string
	Zone     ZoneID

	Teleport  *Teleport
	FloatText *FloatText
	Cast      *CastResult
	Class     *ClassSelection
	Player    *PlayerView
}

// Teleport is a discrete server-driven position change.
type Teleport struct {
	Zone ZoneID
	X    float64
	Y    float64
}

// FloatText is transient combat feedback drawn at a position.
type FloatText struct {
	X     float64
	Y     float64
	Text  string
	Color string
	TTL   time.Duration
}

// CastResult is the outcome of a cast request. Denied results carry a reason
// and, for cooldowns, the remaining wait.
type CastResult struct {
	Slot      int
	Cooldown  time.Duration
	Denied    bool
	Reason    string
	Remaining time.Duration
}

// ClassSelection confirms a class switch.
type ClassSelection struct {
	Class string
	Level int
}

type noticeBuffer struct {
	pending []Notice
}

func (b *noticeBuffer) push(n Notice) {
	b.pending = append(b.pending, n)
}

func (b *noticeBuffer) drain() []Notice {
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

func (w *World) teleport(p *Player) {
	w.notices.push(Notice{
		Kind:     NoticeTeleport,
		PlayerID: p.ID,
		Zone:     p.Zone,
		Teleport: &Teleport{Zone: p.Zone, X: p.X, Y: p.Y},
	})
}

func (w *World) floatText(zone ZoneID, x, y float64, text, color string, ttl time.Duration) {
	w.notices.push(Notice{
		Kind:      NoticeFloatText,
		Zone:      zone,
		FloatText: &FloatText{X: x, Y: y, Text: text, Color: color, TTL: ttl},
	})
}
