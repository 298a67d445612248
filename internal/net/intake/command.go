package intake

import (
	"math"
	"strings"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/sim"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
)

const (
	// RejectRateLimited marks a message dropped by the connection budget.
	RejectRateLimited = "rate_limited"
	// RejectUnsupported marks a message type the intake does not stage.
	RejectUnsupported = "unsupported_type"
	// RejectInvalidClass marks a class id outside the allow-list.
	RejectInvalidClass = "invalid_class"
)

// Enqueuer accepts staged commands. *sim.Loop satisfies it.
type Enqueuer interface {
	Enqueue(sim.Command) (bool, string)
}

// IntentWriter records the latest movement vector. *sim.IntentStore
// satisfies it.
type IntentWriter interface {
	Set(actorID string, dx, dy float64, seq uint32, receivedAt time.Time)
}

// CommandContext carries the collaborators a connection needs to stage
// messages.
type CommandContext struct {
	Engine  Enqueuer
	Intents IntentWriter
	Limiter *Limiter
	Tick    func() uint64
	Now     func() time.Time
}

// NormalizeMove clamps each intent component to [-1,1]. Invalid components
// become 0.
func NormalizeMove(dx, dy proto.Number) (float64, float64) {
	return clampUnit(dx.Float(0)), clampUnit(dy.Float(0))
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// StageClientCommand routes msg from playerID. Movement writes the intent
// store and returns a zero command; class selection and casts are queued for
// the next tick. Budget overruns return RejectRateLimited and are meant to be
// dropped silently.
func StageClientCommand(ctx CommandContext, playerID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command
	now := time.Now()
	if ctx.Now != nil {
		now = ctx.Now()
	}

	switch msg.Type {
	case proto.TypeInput:
		if !ctx.Limiter.AllowMove(now) {
			return zero, false, RejectRateLimited
		}
		if ctx.Intents == nil {
			return zero, false, sim.CommandRejectQueueFull
		}
		dx, dy := NormalizeMove(msg.DX, msg.DY)
		ctx.Intents.Set(playerID, dx, dy, msg.Seq.Uint32(), now)
		return zero, true, ""
	case proto.TypeChooseClass, proto.TypeCast:
		if !ctx.Limiter.AllowAction(now) {
			return zero, false, RejectRateLimited
		}
	default:
		return zero, false, RejectUnsupported
	}

	command := sim.Command{ActorID: playerID, IssuedAt: now}
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	switch msg.Type {
	case proto.TypeChooseClass:
		class := strings.TrimSpace(msg.ClassID)
		if !world.ClassAllowed(class) {
			return zero, false, RejectInvalidClass
		}
		command.Type = sim.CommandChooseClass
		command.ChooseClass = &sim.ChooseClassCommand{Class: class}
	case proto.TypeCast:
		command.Type = sim.CommandCast
		command.Cast = &sim.CastCommand{
			Slot:    msg.Slot.Int(),
			TargetX: msg.TargetX.Ptr(),
			TargetY: msg.TargetY.Ptr(),
		}
	}

	if ctx.Engine == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Engine.Enqueue(command); !ok {
		return zero, false, reason
	}
	return command, true, ""
}
