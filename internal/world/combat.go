package world

import (
	"context"
	"fmt"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	loggingcombat "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/combat"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/economy"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/lifecycle"
	loggingstatus "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/status_effects"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"
)

// damagePlayer subtracts amount from p unless the respawn immunity window is
// open. It reports whether the hit was fatal.
func (w *World) damagePlayer(p *Player, amount int, source string, attacker logging.EntityRef, color string, textOffset float64) bool {
	if p.Status.HitImmune(w.now) || amount <= 0 {
		return false
	}
	p.HP = max(0, p.HP-amount)
	w.floatText(p.Zone, p.X, p.Y-textOffset, fmt.Sprintf("-%d", amount), color, floatTextTTL)
	loggingcombat.Damage(context.Background(), w.publisher, w.tick, attacker, logging.PlayerRef(p.ID), loggingcombat.DamagePayload{
		Source:       source,
		Amount:       amount,
		TargetHealth: p.HP,
		Zone:         string(p.Zone),
	}, nil)
	return p.HP <= 0
}

// handlePlayerDeath applies the experience penalty, transfers it to a PvP
// killer standing outside the safe zone, then heals the victim and returns it
// to its checkpoint with a brief immunity window.
func (w *World) handlePlayerDeath(victim, killer *Player, pvp bool, source string) {
	ctx := context.Background()
	killerRef := logging.EntityRef{Kind: logging.EntityKindWorld}
	if killer != nil {
		killerRef = logging.PlayerRef(killer.ID)
	}
	loggingcombat.Defeat(ctx, w.publisher, w.tick, killerRef, logging.PlayerRef(victim.ID), loggingcombat.DefeatPayload{
		Source: source,
		Zone:   string(victim.Zone),
		PvP:    pvp,
	}, nil)

	loss := 0
	if bag, ok := victim.activeBag(); ok {
		loss = stats.DeathExperienceLoss(bag.XP)
		bag.XP = max(0, bag.XP-loss)
		victim.progress.Classes[victim.Class] = bag
		w.persist(victim)
		if loss > 0 {
			w.floatText(victim.Zone, victim.X, victim.Y, fmt.Sprintf("-%d XP", loss), ColorXPLoss, longFloatTextTTL)
			economy.ExperienceLost(ctx, w.publisher, w.tick, logging.PlayerRef(victim.ID), economy.ExperiencePayload{
				Class:     victim.Class,
				Amount:    loss,
				Remaining: bag.XP,
			}, nil)
		}
	}

	if pvp && killer != nil && killer.Zone != ZoneSafe && loss > 0 {
		if bag, ok := killer.activeBag(); ok {
			w.grantExperience(killer, bag, loss)
			w.persist(killer)
			w.floatText(killer.Zone, killer.X, killer.Y-20, fmt.Sprintf("+%d XP", loss), ColorXP, longFloatTextTTL)
			economy.ExperienceTransferred(ctx, w.publisher, w.tick, logging.PlayerRef(killer.ID), logging.PlayerRef(victim.ID), economy.ExperiencePayload{
				Class:     killer.Class,
				Amount:    loss,
				Remaining: killer.XP(),
			}, nil)
		}
	}

	victim.heal()
	victim.Status.HitImmuneUntil = w.now.Add(deathImmunity)
	loggingstatus.ImmunityGranted(ctx, w.publisher, w.tick, logging.PlayerRef(victim.ID), loggingstatus.ImmunityPayload{
		Cause:      "respawn",
		DurationMs: deathImmunity.Milliseconds(),
	})
	checkpoint := victim.Checkpoint
	if checkpoint.Zone == "" {
		checkpoint = DefaultCheckpoint(w.width, w.height)
	}
	victim.Zone = checkpoint.Zone
	victim.X = checkpoint.X
	victim.Y = checkpoint.Y
	w.teleport(victim)
	lifecycle.Respawned(ctx, w.publisher, w.tick, logging.PlayerRef(victim.ID), lifecycle.RespawnedPayload{
		Zone: string(victim.Zone),
		X:    victim.X,
		Y:    victim.Y,
	}, nil)
}

// grantExperience adds gain to bag, runs the level-up loop and mirrors the
// result onto the live player. Level-up heals start from the live HP, not the
// value last saved in the bag.
func (w *World) grantExperience(p *Player, bag stats.ClassProgress, gain int) {
	bag.HP = p.HP
	gained := stats.GrantExperience(&bag, gain)
	p.mirrorBag(bag)
	if gained > 0 {
		economy.LevelUp(context.Background(), w.publisher, w.tick, logging.PlayerRef(p.ID), economy.LevelUpPayload{
			Class:  p.Class,
			Level:  bag.Level,
			Gained: gained,
			HPMax:  bag.HPMax,
		}, nil)
	}
}

// killEnemy removes the enemy at index, queues its replacement and credits
// the killing player when one is still connected.
func (w *World) killEnemy(index int, killerID string) {
	e := w.enemies[index]
	copy(w.enemies[index:], w.enemies[index+1:])
	w.enemies[len(w.enemies)-1] = nil
	w.enemies = w.enemies[:len(w.enemies)-1]

	w.respawns = append(w.respawns, respawnJob{
		at:    w.now.Add(enemyRespawnDelay),
		count: enemyRespawnCount,
		zone:  e.Zone,
	})
	loggingcombat.Defeat(context.Background(), w.publisher, w.tick, logging.PlayerRef(killerID), logging.EnemyRef(e.ID), loggingcombat.DefeatPayload{
		Source: e.Kind,
		Zone:   string(e.Zone),
	}, nil)

	if owner, ok := w.players[killerID]; ok {
		w.creditKill(owner, e)
	}
}

// creditKill applies the kill reward economy to owner's active class and
// account gold.
func (w *World) creditKill(owner *Player, e *Enemy) {
	multiplier := owner.RewardMultiplier()
	xpGain := 0
	bag, hasClass := owner.activeBag()
	if hasClass {
		xpGain = stats.KillExperience(e.profile.XPReward, multiplier, bag.Level, e.Level)
	}
	goldGain := stats.KillGold(e.profile.GoldReward, multiplier)

	if xpGain > 0 {
		w.floatText(e.Zone, e.X, e.Y, fmt.Sprintf("+%d XP", xpGain), ColorXP, floatTextTTL)
		w.grantExperience(owner, bag, xpGain)
	}
	if goldGain > 0 {
		owner.progress.Gold = max(0, owner.progress.Gold+goldGain)
		owner.Gold = owner.progress.Gold
		w.floatText(e.Zone, e.X, e.Y-14, fmt.Sprintf("+%dg", goldGain), ColorGold, floatTextTTL)
	}
	w.persist(owner)

	economy.RewardGranted(context.Background(), w.publisher, w.tick, logging.PlayerRef(owner.ID), logging.EnemyRef(e.ID), economy.RewardGrantedPayload{
		Class:      owner.Class,
		XP:         xpGain,
		Gold:       goldGain,
		Multiplier: multiplier,
		EnemyLevel: e.Level,
	}, nil)
}
