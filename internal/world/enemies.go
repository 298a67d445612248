package world

import "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"

// spawnEnemies adds n enemies using zone's stat table. Zones without a table
// never receive a population.
func (w *World) spawnEnemies(zone ZoneID, n int) {
	profile, ok := EnemyProfileFor(zone)
	if !ok {
		return
	}
	for i := 0; i < n; i++ {
		speed := enemyBaseSpeedMin + w.rng.Float64()*enemyBaseSpeedVar + profile.SpeedBonus
		x, y := w.inset(100, 150).sample(w.rng)
		vx, vy := heading(w.rng, speed)
		e := &Enemy{
			ID:        w.nextEnemy(),
			Kind:      profile.Kind,
			Zone:      zone,
			X:         x,
			Y:         y,
			VX:        vx,
			VY:        vy,
			Level:     profile.Level,
			HP:        profile.HP,
			HPMax:     profile.HP,
			Radius:    profile.Radius,
			MoveSpeed: speed,
			State:     EnemyWandering,
			profile:   profile,
		}
		w.enemies = append(w.enemies, e)
	}
}

func (w *World) stepEnemies(dt float64) {
	for _, e := range w.enemies {
		w.steerEnemy(e)
		e.X += e.VX * dt
		e.Y += e.VY * dt
		w.bounceEnemy(e)
		if e.profile.Aggressive {
			w.enemyAttack(e)
		}
		w.enemyTouch(e)
	}
}

// steerEnemy points the enemy at the nearest same-zone player inside its
// detection range. Otherwise the current wander heading is kept.
func (w *World) steerEnemy(e *Enemy) {
	target, d := w.nearestPlayer(e.Zone, e.X, e.Y)
	if target == nil || d > e.profile.DetectRange {
		e.State = EnemyWandering
		return
	}
	e.State = EnemyChasing
	length := d
	if length == 0 {
		length = 1
	}
	e.VX = (target.X - e.X) / length * e.MoveSpeed
	e.VY = (target.Y - e.Y) / length * e.MoveSpeed
}

func (w *World) bounceEnemy(e *Enemy) {
	if (e.X < enemyBounceMargin && e.VX < 0) || (e.X > w.width-enemyBounceMargin && e.VX > 0) {
		e.VX = -e.VX
	}
	if (e.Y < enemyBounceMargin && e.VY < 0) || (e.Y > w.height-enemyBounceMargin && e.VY > 0) {
		e.VY = -e.VY
	}
	e.X = Clamp(e.X, 0, w.width)
	e.Y = Clamp(e.Y, 0, w.height)
}

// enemyAttack fires a slowing shot at the nearest player in attack range once
// the fire interval has elapsed.
func (w *World) enemyAttack(e *Enemy) {
	if !e.lastShotAt.IsZero() && w.now.Sub(e.lastShotAt) < e.profile.FireInterval {
		return
	}
	target, d := w.nearestPlayer(e.Zone, e.X, e.Y)
	if target == nil || d > e.profile.AttackRange {
		return
	}
	length := d
	if length == 0 {
		length = 1
	}
	pr := &Projectile{
		Kind:         ProjectileSlimeBall,
		OwnerKind:    OwnerEnemy,
		OwnerID:      e.ID,
		Zone:         e.Zone,
		X:            e.X,
		Y:            e.Y,
		VX:           (target.X - e.X) / length * e.profile.ShotSpeed,
		VY:           (target.Y - e.Y) / length * e.profile.ShotSpeed,
		Radius:       enemyShotRadius,
		Damage:       e.profile.ShotDamage,
		SlowFactor:   e.profile.SlowFactor,
		SlowDuration: e.profile.SlowDuration,
		ExpiresAt:    w.now.Add(enemyShotLifetime),
		MaxDistance:  enemyShotRange,
	}
	w.launch(pr, logging.EnemyRef(e.ID), string(ProjectileSlimeBall), target.X, target.Y)
	e.lastShotAt = w.now
	e.State = EnemyAttacking
}

// enemyTouch applies contact damage to every overlapping player whose touch
// immunity has lapsed.
func (w *World) enemyTouch(e *Enemy) {
	for _, id := range w.playerOrder {
		p := w.players[id]
		if p.Zone != e.Zone {
			continue
		}
		if !circlesOverlap(e.X, e.Y, e.Radius, p.X, p.Y, PlayerRadius) {
			continue
		}
		if p.Status.TouchImmuneUntil.After(w.now) || p.Status.HitImmune(w.now) {
			continue
		}
		p.Status.TouchImmuneUntil = w.now.Add(touchImmunity)
		if w.damagePlayer(p, e.profile.TouchDamage, "touch", logging.EnemyRef(e.ID), ColorTouchDamage, 16) {
			w.handlePlayerDeath(p, nil, false, "touch")
		}
	}
}

// processRespawns spawns every due job in arrival order.
func (w *World) processRespawns() {
	for len(w.respawns) > 0 && !w.respawns[0].at.After(w.now) {
		job := w.respawns[0]
		w.respawns = w.respawns[1:]
		w.spawnEnemies(job.zone, max(1, job.count))
	}
}

// PendingRespawns reports how many respawn jobs are queued.
func (w *World) PendingRespawns() int {
	return len(w.respawns)
}
