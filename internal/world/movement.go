package world

import (
	"context"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/lifecycle"
)

// Integrate moves (x, y) along the unit direction of (dx, dy) by speed*dt.
func Integrate(x, y, dx, dy, speed, dt float64) (float64, float64) {
	nx, ny := Normalize(dx, dy)
	return x + nx*speed*dt, y + ny*speed*dt
}

func (w *World) stepPlayers(dt float64, intents IntentSource) {
	for _, id := range w.playerOrder {
		w.movePlayer(w.players[id], dt, intents)
	}
}

func (w *World) movePlayer(p *Player, dt float64, intents IntentSource) {
	var dx, dy float64
	if intents != nil {
		if intent, ok := intents.Intent(p.ID); ok {
			if !intent.ReceivedAt.IsZero() && w.now.Sub(intent.ReceivedAt) <= InputStaleAfter {
				dx, dy = intent.DX, intent.DY
			}
			p.LastProcessedSeq = intent.Seq
		}
	}

	speed := PlayerSpeed * p.Status.SpeedFactor(w.now)
	p.X, p.Y = Integrate(p.X, p.Y, dx, dy, speed, dt)

	from := p.Zone
	rule, crossed := FindTransition(p.Zone, p.X, p.Y, w.width, w.height)
	if crossed {
		p.Zone = rule.To
		p.X, p.Y = rule.Edge.Enter(p.X, p.Y, w.width, w.height)
	}

	p.X = Clamp(p.X, MoveMargin, w.width-MoveMargin)
	p.Y = Clamp(p.Y, MoveMargin, w.height-MoveMargin)

	if !crossed {
		return
	}
	if p.Zone == ZoneSafe {
		p.Checkpoint = Checkpoint{Zone: ZoneSafe, X: p.X, Y: p.Y}
	}
	w.teleport(p)
	lifecycle.ZoneChanged(context.Background(), w.publisher, w.tick, logging.PlayerRef(p.ID), lifecycle.ZoneChangedPayload{
		From: string(from),
		To:   string(p.Zone),
		X:    p.X,
		Y:    p.Y,
	}, nil)
}
