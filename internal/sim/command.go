package sim

import (
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandJoin        CommandType = "Join"
	CommandLeave       CommandType = "Leave"
	CommandChooseClass CommandType = "ChooseClass"
	CommandCast        CommandType = "Cast"
)

// Lifecycle reports whether losing the command would leave the world out of
// sync with the connection set.
func (t CommandType) Lifecycle() bool {
	return t == CommandJoin || t == CommandLeave
}

// JoinCommand admits an account with the progress read at handshake time.
type JoinCommand struct {
	Name      string                 `json:"name"`
	SessionID string                 `json:"sessionId"`
	Progress  storage.ProgressRecord `json:"progress"`
}

// LeaveCommand removes an actor from the world.
type LeaveCommand struct {
	Reason    string `json:"reason"`
	SessionID string `json:"sessionId"`
}

// ChooseClassCommand switches the actor's active class.
type ChooseClassCommand struct {
	Class string `json:"class"`
}

// CastCommand fires the ability bound to Slot.
type CastCommand struct {
	Slot    int      `json:"slot"`
	TargetX *float64 `json:"targetX,omitempty"`
	TargetY *float64 `json:"targetY,omitempty"`
}

// Command represents an intent captured for processing on the next tick.
// Movement is not a command: it lives in the IntentStore as the latest vector
// per actor.
type Command struct {
	OriginTick  uint64              `json:"originTick"`
	ActorID     string              `json:"actorId"`
	Type        CommandType         `json:"type"`
	IssuedAt    time.Time           `json:"issuedAt"`
	Join        *JoinCommand        `json:"join,omitempty"`
	Leave       *LeaveCommand       `json:"leave,omitempty"`
	ChooseClass *ChooseClassCommand `json:"chooseClass,omitempty"`
	Cast        *CastCommand        `json:"cast,omitempty"`
}
