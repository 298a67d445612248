package server

import (
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
)

func snapshotMessage(selfID string, snap world.ZoneSnapshot) proto.Snapshot {
	msg := proto.Snapshot{
		SelfID:      selfID,
		Map:         string(snap.Zone),
		Tick:        snap.Tick,
		ServerTime:  snap.ServerTime.UnixMilli(),
		Players:     make([]proto.PlayerState, 0, len(snap.Players)),
		Projectiles: make([]proto.ProjectileState, 0, len(snap.Projectiles)),
		Enemies:     make([]proto.EnemyState, 0, len(snap.Enemies)),
	}
	for _, p := range snap.Players {
		msg.Players = append(msg.Players, playerState(p))
	}
	for _, pr := range snap.Projectiles {
		msg.Projectiles = append(msg.Projectiles, proto.ProjectileState{
			ID:     pr.ID,
			Kind:   string(pr.Kind),
			Owner:  string(pr.Owner),
			X:      pr.X,
			Y:      pr.Y,
			VX:     pr.VX,
			VY:     pr.VY,
			Radius: pr.Radius,
		})
	}
	for _, e := range snap.Enemies {
		msg.Enemies = append(msg.Enemies, proto.EnemyState{
			ID:         e.ID,
			Kind:       e.Kind,
			X:          e.X,
			Y:          e.Y,
			HP:         e.HP,
			HPMax:      e.HPMax,
			Level:      e.Level,
			Radius:     e.Radius,
			Aggressive: e.Aggressive,
			State:      string(e.State),
		})
	}
	return msg
}

func playerState(p world.PlayerView) proto.PlayerState {
	return proto.PlayerState{
		ID:               p.ID,
		Name:             p.Name,
		Map:              string(p.Zone),
		X:                p.X,
		Y:                p.Y,
		HP:               p.HP,
		HPMax:            p.HPMax,
		Class:            p.Class,
		Level:            p.Level,
		XP:               p.XP,
		Gold:             p.Gold,
		LastProcessedSeq: p.LastProcessedSeq,
		Slowed:           p.Slowed,
		SlowFactor:       p.SlowFactor,
		TotalLevel:       p.TotalLevel,
		RewardMult:       p.RewardMult,
	}
}

// noticeMessage converts a world notice to its wire message, or nil when the
// notice carries no payload.
func noticeMessage(n world.Notice) proto.ServerMessage {
	switch n.Kind {
	case world.NoticeTeleport:
		if n.Teleport == nil {
			return nil
		}
		return &proto.Teleport{Map: string(n.Teleport.Zone), X: n.Teleport.X, Y: n.Teleport.Y}
	case world.NoticeFloatText:
		if n.FloatText == nil {
			return nil
		}
		return &proto.FloatText{
			X:     n.FloatText.X,
			Y:     n.FloatText.Y,
			Text:  n.FloatText.Text,
			Color: n.FloatText.Color,
			TTL:   n.FloatText.TTL.Milliseconds(),
		}
	case world.NoticeCastAck:
		if n.Cast == nil {
			return nil
		}
		return &proto.CastAck{Slot: n.Cast.Slot, CooldownMs: n.Cast.Cooldown.Milliseconds()}
	case world.NoticeCastDenied:
		if n.Cast == nil {
			return nil
		}
		return &proto.CastDenied{Slot: n.Cast.Slot, Reason: n.Cast.Reason, MsLeft: n.Cast.Remaining.Milliseconds()}
	case world.NoticeClassSelected:
		if n.Class == nil {
			return nil
		}
		return &proto.ClassSelected{ID: n.PlayerID, Class: n.Class.Class, Level: n.Class.Level}
	case world.NoticePlayerJoined:
		if n.Player == nil {
			return nil
		}
		return &proto.PlayerJoined{Player: playerState(*n.Player)}
	case world.NoticePlayerLeft:
		return &proto.PlayerLeft{ID: n.PlayerID}
	}
	return nil
}
