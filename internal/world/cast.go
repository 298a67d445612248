package world

import (
	"math"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

// CastRequest asks to fire the ability in Slot at a target. Nil target
// coordinates default to the caster's position.
type CastRequest struct {
	Slot    int
	TargetX *float64
	TargetY *float64
}

// Cast validates and executes an ability request. Every outcome for a valid
// slot produces exactly one acknowledgement or denial notice; requests for
// slots outside the hotbar or from unknown players are ignored.
func (w *World) Cast(playerID string, req CastRequest) (CastResult, bool) {
	p, ok := w.players[playerID]
	if !ok || req.Slot < 1 || req.Slot > MaxAbilitySlots {
		return CastResult{}, false
	}

	result := w.evaluateCast(p, req)
	kind := NoticeCastAck
	if result.Denied {
		kind = NoticeCastDenied
	}
	w.notices.push(Notice{Kind: kind, PlayerID: p.ID, Zone: p.Zone, Cast: &result})
	return result, true
}

func (w *World) evaluateCast(p *Player, req CastRequest) CastResult {
	deny := func(reason string) CastResult {
		return CastResult{Slot: req.Slot, Denied: true, Reason: reason}
	}
	if p.Class == "" {
		return deny(DenyNoClass)
	}
	if p.Level < SlotUnlockLevel(req.Slot) {
		return deny(DenyLocked)
	}
	if remaining := p.Cooldowns.Remaining(req.Slot, w.now); remaining > 0 {
		result := deny(DenyCooldown)
		result.Remaining = remaining
		return result
	}
	ability, ok := AbilityFor(p.Class, req.Slot)
	if !ok {
		return deny(DenyNoAbility)
	}

	tx, ty := p.X, p.Y
	if req.TargetX != nil && !math.IsNaN(*req.TargetX) {
		tx = *req.TargetX
	}
	if req.TargetY != nil && !math.IsNaN(*req.TargetY) {
		ty = *req.TargetY
	}
	tx = Clamp(tx, 0, w.width)
	ty = Clamp(ty, 0, w.height)

	dx, dy := tx-p.X, ty-p.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		length = 1
	}
	pr := &Projectile{
		Kind:        ability.Kind,
		OwnerKind:   OwnerPlayer,
		OwnerID:     p.ID,
		Zone:        p.Zone,
		X:           p.X,
		Y:           p.Y,
		VX:          dx / length * ability.Speed,
		VY:          dy / length * ability.Speed,
		Radius:      ability.Radius,
		Damage:      ability.Damage,
		ExpiresAt:   w.now.Add(ability.Lifetime),
		MaxDistance: ability.MaxDistance,
	}
	w.launch(pr, logging.PlayerRef(p.ID), ability.ID, tx, ty)
	p.Cooldowns.Start(req.Slot, w.now, ability.Cooldown)
	return CastResult{Slot: req.Slot, Cooldown: ability.Cooldown}
}
