package world

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/economy"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"
)

const testDelta = 1.0 / 30.0

var testEpoch = time.Unix(1_700_000_000, 0)

type recordingProgress struct {
	mu      sync.Mutex
	records map[string]storage.ProgressRecord
	writes  int
}

func (r *recordingProgress) SetProgress(id string, record storage.ProgressRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = make(map[string]storage.ProgressRecord)
	}
	r.records[id] = record
	r.writes++
}

type staticIntents map[string]Intent

func (s staticIntents) Intent(id string) (Intent, bool) {
	intent, ok := s[id]
	return intent, ok
}

type testHarness struct {
	world    *World
	progress *recordingProgress
	events   []logging.Event
	tick     uint64
	now      time.Time
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{progress: &recordingProgress{}, now: testEpoch}
	publisher := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		h.events = append(h.events, event)
	})
	cfg := DefaultConfig()
	cfg.EnemiesPerZone = 0
	h.world = New(cfg, Deps{Publisher: publisher, Progress: h.progress})
	h.world.Begin(StepContext{Tick: 0, Now: h.now})
	return h
}

func (h *testHarness) step(intents IntentSource) {
	h.tick++
	h.now = h.now.Add(time.Second / 30)
	h.world.Step(StepContext{Tick: h.tick, Now: h.now, Delta: testDelta}, intents)
}

func (h *testHarness) stepAt(at time.Time) {
	h.tick++
	h.now = at
	h.world.Step(StepContext{Tick: h.tick, Now: h.now, Delta: testDelta}, nil)
}

func (h *testHarness) eventsOfType(eventType logging.EventType) []logging.Event {
	var out []logging.Event
	for _, event := range h.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func firemageProgress(level, xp int) storage.ProgressRecord {
	bag := stats.NewClassProgress()
	bag.Level = level
	bag.XP = xp
	return storage.ProgressRecord{
		SelectedClass: ClassFiremage,
		Classes:       map[string]stats.ClassProgress{ClassFiremage: bag},
	}
}

func (h *testHarness) addPlayer(id string, zone ZoneID, x, y float64, progress storage.ProgressRecord) *Player {
	p := h.world.AddPlayer(id, id, progress, h.now)
	p.Zone = zone
	p.X = x
	p.Y = y
	return p
}

func (h *testHarness) placeEnemy(zone ZoneID, x, y float64) *Enemy {
	h.world.spawnEnemies(zone, 1)
	e := h.world.enemies[len(h.world.enemies)-1]
	e.X, e.Y = x, y
	e.VX, e.VY = 0, 0
	e.MoveSpeed = 0
	return e
}

func noticesOfKind(notices []Notice, kind NoticeKind, playerID string) []Notice {
	var out []Notice
	for _, n := range notices {
		if n.Kind == kind && (playerID == "" || n.PlayerID == playerID) {
			out = append(out, n)
		}
	}
	return out
}

func float(v float64) *float64 {
	return &v
}

func TestIntegrateDisplacementMatchesSpeed(t *testing.T) {
	cases := []struct {
		name   string
		dx, dy float64
		speed  float64
		dt     float64
	}{
		{name: "axis", dx: 1, dy: 0, speed: 200, dt: 0.033},
		{name: "diagonal", dx: 1, dy: 1, speed: 200, dt: 0.5},
		{name: "unnormalized", dx: -3, dy: 4, speed: 120, dt: 1},
		{name: "tiny", dx: 0.001, dy: -0.002, speed: 75, dt: 0.016},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := Integrate(12, 34, tc.dx, tc.dy, tc.speed, tc.dt)
			moved := math.Hypot(x-12, y-34)
			if math.Abs(moved-tc.speed*tc.dt) > 1e-9 {
				t.Fatalf("expected displacement %.6f, got %.6f", tc.speed*tc.dt, moved)
			}
		})
	}

	x, y := Integrate(5, 5, 0, 0, 200, 1)
	if x != 5 || y != 5 {
		t.Fatalf("zero intent moved player to (%.2f, %.2f)", x, y)
	}
}

func TestMovementAppliesIntentAndClampsToMargin(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p1", ZoneGrass, 400, 588, storage.ProgressRecord{})
	h.world.DrainNotices()

	intents := staticIntents{"p1": {DX: 0, DY: 1, Seq: 7, ReceivedAt: h.now}}
	h.step(intents)

	if p.Y != DefaultHeight-MoveMargin {
		t.Fatalf("expected y clamped to %.0f, got %.3f", DefaultHeight-MoveMargin, p.Y)
	}
	if p.LastProcessedSeq != 7 {
		t.Fatalf("expected last processed seq 7, got %d", p.LastProcessedSeq)
	}
}

func TestStaleIntentDoesNotMoveButRecordsSeq(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p1", ZoneGrass, 400, 300, storage.ProgressRecord{})

	intents := staticIntents{"p1": {DX: 1, DY: 0, Seq: 42, ReceivedAt: h.now.Add(-300 * time.Millisecond)}}
	h.step(intents)

	if p.X != 400 || p.Y != 300 {
		t.Fatalf("stale intent moved player to (%.2f, %.2f)", p.X, p.Y)
	}
	if p.LastProcessedSeq != 42 {
		t.Fatalf("expected seq 42 recorded, got %d", p.LastProcessedSeq)
	}
}

func TestSlowReducesMovement(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p1", ZoneGrass, 400, 300, storage.ProgressRecord{})
	p.Status.SlowFactor = 0.5
	p.Status.SlowUntil = h.now.Add(time.Second)

	h.step(staticIntents{"p1": {DX: 1, ReceivedAt: h.now}})
	want := 400 + PlayerSpeed*0.5*testDelta
	if math.Abs(p.X-want) > 1e-9 {
		t.Fatalf("expected slowed x %.4f, got %.4f", want, p.X)
	}
}

func TestZoneTransitionTeleportsOnce(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p1", ZoneGrass, DefaultWidth-MoveMargin, 300, storage.ProgressRecord{})
	h.world.DrainNotices()

	intents := staticIntents{"p1": {DX: 1, ReceivedAt: h.now}}
	h.step(intents)

	if p.Zone != ZoneSlime {
		t.Fatalf("expected slime zone, got %s", p.Zone)
	}
	if p.X != edgeEntry {
		t.Fatalf("expected entry x %.0f, got %.3f", edgeEntry, p.X)
	}
	teleports := noticesOfKind(h.world.DrainNotices(), NoticeTeleport, "p1")
	if len(teleports) != 1 {
		t.Fatalf("expected exactly one teleport, got %d", len(teleports))
	}
	if teleports[0].Teleport.Zone != ZoneSlime || teleports[0].Teleport.X != p.X {
		t.Fatalf("unexpected teleport payload %+v", teleports[0].Teleport)
	}

	intents["p1"] = Intent{DX: 1, ReceivedAt: h.now}
	h.step(intents)
	if got := noticesOfKind(h.world.DrainNotices(), NoticeTeleport, "p1"); len(got) != 0 {
		t.Fatalf("expected no further teleports, got %d", len(got))
	}
}

func TestZoneTransitionRules(t *testing.T) {
	cases := []struct {
		name  string
		zone  ZoneID
		x, y  float64
		to    ZoneID
		wantX float64
		wantY float64
	}{
		{name: "grass-right", zone: ZoneGrass, x: 796, y: 300, to: ZoneSlime, wantX: 20, wantY: 300},
		{name: "grass-top", zone: ZoneGrass, x: 400, y: 4, to: ZoneSafe, wantX: 400, wantY: 580},
		{name: "slime-left", zone: ZoneSlime, x: 3, y: 200, to: ZoneGrass, wantX: 780, wantY: 200},
		{name: "slime-right", zone: ZoneSlime, x: 799, y: 200, to: ZoneSlime2, wantX: 20, wantY: 200},
		{name: "slime2-left", zone: ZoneSlime2, x: 5, y: 100, to: ZoneSlime, wantX: 780, wantY: 100},
		{name: "safe-bottom", zone: ZoneSafe, x: 250, y: 596, to: ZoneGrass, wantX: 250, wantY: 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := FindTransition(tc.zone, tc.x, tc.y, DefaultWidth, DefaultHeight)
			if !ok {
				t.Fatalf("expected a transition")
			}
			if rule.To != tc.to {
				t.Fatalf("expected %s, got %s", tc.to, rule.To)
			}
			x, y := rule.Edge.Enter(tc.x, tc.y, DefaultWidth, DefaultHeight)
			if x != tc.wantX || y != tc.wantY {
				t.Fatalf("expected entry (%.0f, %.0f), got (%.0f, %.0f)", tc.wantX, tc.wantY, x, y)
			}
		})
	}

	if _, ok := FindTransition(ZoneSlime2, 799, 300, DefaultWidth, DefaultHeight); ok {
		t.Fatalf("slime2 has no right-hand neighbour")
	}
	if _, ok := FindTransition(ZoneSafe, 400, 2, DefaultWidth, DefaultHeight); ok {
		t.Fatalf("safe has no northern neighbour")
	}
}

func TestEnteringSafeZoneRecordsCheckpoint(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p1", ZoneGrass, 321, MoveMargin, storage.ProgressRecord{})

	h.step(staticIntents{"p1": {DY: -1, ReceivedAt: h.now}})

	if p.Zone != ZoneSafe {
		t.Fatalf("expected safe zone, got %s", p.Zone)
	}
	want := Checkpoint{Zone: ZoneSafe, X: 321, Y: DefaultHeight - edgeEntry}
	if p.Checkpoint != want {
		t.Fatalf("expected checkpoint %+v, got %+v", want, p.Checkpoint)
	}
}

func TestProjectileLimit(t *testing.T) {
	now := testEpoch
	base := func() *Projectile {
		return &Projectile{X: 100, Y: 100, StartX: 100, StartY: 100, ExpiresAt: now.Add(time.Second), MaxDistance: 50}
	}
	cases := []struct {
		name   string
		mutate func(*Projectile)
		at     time.Time
		want   ProjectileRemoval
	}{
		{name: "alive", mutate: func(*Projectile) {}, at: now, want: RemovalNone},
		{name: "expired exactly", mutate: func(*Projectile) {}, at: now.Add(time.Second), want: RemovalExpired},
		{name: "at max distance", mutate: func(p *Projectile) { p.X = 150 }, at: now, want: RemovalNone},
		{name: "past max distance", mutate: func(p *Projectile) { p.X = 150.5 }, at: now, want: RemovalMaxDistance},
		{name: "left edge", mutate: func(p *Projectile) { p.X, p.StartX = -0.1, 0 }, at: now, want: RemovalOutOfBounds},
		{name: "bottom edge", mutate: func(p *Projectile) { p.Y, p.StartY = DefaultHeight+1, DefaultHeight }, at: now, want: RemovalOutOfBounds},
		{name: "on boundary", mutate: func(p *Projectile) { p.X, p.StartX = DefaultWidth, DefaultWidth }, at: now, want: RemovalNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pr := base()
			tc.mutate(pr)
			if got := ProjectileLimit(pr, tc.at, DefaultWidth, DefaultHeight); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestProjectileNeverOutlivesLimits(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("caster", ZoneGrass, 400, 300, firemageProgress(1, 0))

	if _, ok := h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(800), TargetY: float(300)}); !ok {
		t.Fatalf("cast ignored")
	}
	pr := h.world.projectiles[0]
	for i := 0; i < 200 && len(h.world.projectiles) > 0; i++ {
		h.step(nil)
		for _, live := range h.world.projectiles {
			if ProjectileLimit(live, h.now, DefaultWidth, DefaultHeight) != RemovalNone {
				t.Fatalf("projectile %s survived past a limit at tick %d", live.ID, h.tick)
			}
		}
	}
	if len(h.world.projectiles) != 0 {
		t.Fatalf("expected projectile removed, %d remain", len(h.world.projectiles))
	}
	if pr.X > DefaultWidth+PlayerSpeed || pr.Traveled() > 550+450*testDelta {
		t.Fatalf("projectile travelled too far before removal: %.2f", pr.Traveled())
	}
}

func TestKillRewardScenario(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("hunter", ZoneGrass, 400, 300, firemageProgress(1, 0))
	e := h.placeEnemy(ZoneGrass, 430, 300)
	e.HP = 20

	h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
	h.step(nil)

	if len(h.world.enemies) != 0 {
		t.Fatalf("expected enemy killed, %d remain", len(h.world.enemies))
	}
	if p.XP() != 20 || p.Level != 1 {
		t.Fatalf("expected level 1 with 20 xp, got level %d xp %d", p.Level, p.XP())
	}
	if p.Gold != 5 {
		t.Fatalf("expected 5 gold, got %d", p.Gold)
	}
	if h.world.PendingRespawns() != 1 {
		t.Fatalf("expected respawn queued")
	}
	record, ok := h.progress.records["hunter"]
	if !ok || record.Classes[ClassFiremage].XP != 20 || record.Gold != 5 {
		t.Fatalf("expected persisted reward, got %+v", record)
	}
	if len(h.eventsOfType(economy.EventRewardGranted)) != 1 {
		t.Fatalf("expected one reward event")
	}

	texts := noticesOfKind(h.world.DrainNotices(), NoticeFloatText, "")
	var sawXP, sawGold bool
	for _, n := range texts {
		switch n.FloatText.Text {
		case "+20 XP":
			sawXP = n.FloatText.Color == ColorXP
		case "+5g":
			sawGold = n.FloatText.Color == ColorGold
		}
	}
	if !sawXP || !sawGold {
		t.Fatalf("expected xp and gold float texts, got %+v", texts)
	}
}

func TestKillRewardAntiFarming(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("veteran", ZoneGrass, 400, 300, firemageProgress(4, 10))
	e := h.placeEnemy(ZoneGrass, 430, 300)
	e.HP = 1

	h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
	h.step(nil)

	if p.XP() != 10 {
		t.Fatalf("expected no xp from a low level enemy, got %d", p.XP())
	}
	// total level 4 gives a 1.15 multiplier: floor(5 * 1.15) = 5
	if p.Gold != 5 {
		t.Fatalf("expected gold still awarded, got %d", p.Gold)
	}
}

func TestKillLevelsUpWithinCap(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("grinder", ZoneGrass, 400, 300, firemageProgress(1, 95))
	e := h.placeEnemy(ZoneGrass, 430, 300)
	e.HP = 1

	h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
	h.step(nil)

	if p.Level != 2 || p.XP() != 15 {
		t.Fatalf("expected level 2 with 15 xp, got level %d xp %d", p.Level, p.XP())
	}
	if p.HPMax != stats.DefaultClassHP+5 {
		t.Fatalf("expected hp max %d, got %d", stats.DefaultClassHP+5, p.HPMax)
	}
}

func TestKillRewardKeepsLiveHealth(t *testing.T) {
	cases := []struct {
		name      string
		xp        int
		wantLevel int
		wantHP    int
		wantHPMax int
	}{
		{name: "no level-up", xp: 0, wantLevel: 1, wantHP: 40, wantHPMax: stats.DefaultClassHP},
		{name: "level-up heals from live hp", xp: 95, wantLevel: 2, wantHP: 50, wantHPMax: stats.DefaultClassHP + 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			p := h.addPlayer("wounded", ZoneGrass, 400, 300, firemageProgress(1, tc.xp))
			p.HP = 40
			e := h.placeEnemy(ZoneGrass, 430, 300)
			e.HP = 1

			h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
			h.step(nil)

			if len(h.world.enemies) != 0 {
				t.Fatalf("expected enemy killed")
			}
			if p.Level != tc.wantLevel || p.HP != tc.wantHP || p.HPMax != tc.wantHPMax {
				t.Fatalf("expected level %d hp %d/%d, got level %d hp %d/%d",
					tc.wantLevel, tc.wantHP, tc.wantHPMax, p.Level, p.HP, p.HPMax)
			}
		})
	}
}

func TestClasslessKillerEarnsGoldOnly(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("novice", ZoneGrass, 400, 300, firemageProgress(1, 0))
	e := h.placeEnemy(ZoneGrass, 430, 300)
	e.HP = 1
	h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
	p.Class = ""

	h.step(nil)

	if p.Gold != 5 {
		t.Fatalf("expected gold awarded, got %d", p.Gold)
	}
	if p.progress.Classes[ClassFiremage].XP != 0 {
		t.Fatalf("expected no xp without an active class")
	}
}

func TestPvPDeathTransfersExperience(t *testing.T) {
	h := newHarness(t)
	killer := h.addPlayer("killer", ZoneGrass, 400, 300, firemageProgress(1, 0))
	victim := h.addPlayer("victim", ZoneGrass, 425, 300, firemageProgress(1, 50))
	victim.HP = 10
	h.world.DrainNotices()

	h.world.Cast(killer.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
	h.step(nil)

	if victim.XP() != 45 {
		t.Fatalf("expected victim xp 45, got %d", victim.XP())
	}
	if killer.XP() != 5 {
		t.Fatalf("expected killer xp 5, got %d", killer.XP())
	}
	if victim.HP != victim.HPMax {
		t.Fatalf("expected victim healed, hp %d/%d", victim.HP, victim.HPMax)
	}
	checkpoint := DefaultCheckpoint(DefaultWidth, DefaultHeight)
	if victim.Zone != checkpoint.Zone || victim.X != checkpoint.X || victim.Y != checkpoint.Y {
		t.Fatalf("expected victim at checkpoint, got %s (%.0f, %.0f)", victim.Zone, victim.X, victim.Y)
	}
	if !victim.Status.HitImmune(h.now) || victim.Status.HitImmune(h.now.Add(deathImmunity)) {
		t.Fatalf("expected a %s immunity window", deathImmunity)
	}
	if got := noticesOfKind(h.world.DrainNotices(), NoticeTeleport, "victim"); len(got) != 1 {
		t.Fatalf("expected one respawn teleport, got %d", len(got))
	}
	if len(h.eventsOfType(economy.EventExperienceTransferred)) != 1 {
		t.Fatalf("expected transfer event")
	}
}

func TestHitImmunityBlocksDamage(t *testing.T) {
	h := newHarness(t)
	attacker := h.addPlayer("a", ZoneGrass, 400, 300, firemageProgress(1, 0))
	victim := h.addPlayer("b", ZoneGrass, 425, 300, firemageProgress(1, 0))
	victim.Status.HitImmuneUntil = h.now.Add(time.Second)

	h.world.Cast(attacker.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
	h.step(nil)

	if victim.HP != victim.HPMax {
		t.Fatalf("expected immune victim unharmed, hp %d", victim.HP)
	}
	if len(h.world.projectiles) != 0 {
		t.Fatalf("expected projectile consumed by the hit")
	}
}

func TestNoPvPInSafeZone(t *testing.T) {
	h := newHarness(t)
	attacker := h.addPlayer("a", ZoneSafe, 400, 300, firemageProgress(1, 0))
	victim := h.addPlayer("b", ZoneSafe, 425, 300, firemageProgress(1, 0))

	h.world.Cast(attacker.ID, CastRequest{Slot: 1, TargetX: float(430), TargetY: float(300)})
	h.step(nil)

	if victim.HP != victim.HPMax {
		t.Fatalf("expected no pvp damage in safe zone, hp %d", victim.HP)
	}
	if len(h.world.projectiles) != 1 {
		t.Fatalf("expected projectile to pass through, %d live", len(h.world.projectiles))
	}
}

func TestEnemyTouchDamageRespectsImmunity(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p", ZoneGrass, 300, 300, firemageProgress(1, 0))
	h.placeEnemy(ZoneGrass, 300, 300)

	start := h.now
	h.stepAt(start)
	if p.HP != 92 {
		t.Fatalf("expected touch damage 8, hp %d", p.HP)
	}
	h.stepAt(start.Add(100 * time.Millisecond))
	if p.HP != 92 {
		t.Fatalf("expected touch immunity, hp %d", p.HP)
	}
	h.stepAt(start.Add(touchImmunity))
	if p.HP != 84 {
		t.Fatalf("expected second touch after immunity, hp %d", p.HP)
	}
}

func TestAggressiveEnemyShotSlows(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p", ZoneSlime, 400, 300, firemageProgress(1, 0))
	e := h.placeEnemy(ZoneSlime, 500, 300)

	for i := 0; i < 30 && p.HP == p.HPMax; i++ {
		h.step(nil)
		if i == 0 && e.State != EnemyAttacking {
			t.Fatalf("expected enemy to fire on first step, state %s", e.State)
		}
	}
	profile, _ := EnemyProfileFor(ZoneSlime)
	if p.HP != p.HPMax-profile.ShotDamage {
		t.Fatalf("expected shot damage %d, hp %d/%d", profile.ShotDamage, p.HP, p.HPMax)
	}
	if !p.Status.Slowed(h.now) || p.Status.SpeedFactor(h.now) != profile.SlowFactor {
		t.Fatalf("expected slow %.2f, got %+v", profile.SlowFactor, p.Status)
	}
}

func TestWanderingEnemyBouncesOffInterior(t *testing.T) {
	h := newHarness(t)
	e := h.placeEnemy(ZoneGrass, 15, 300)
	e.VX = -40

	h.step(nil)
	if e.VX <= 0 {
		t.Fatalf("expected enemy to reflect off the left bound, vx %.2f", e.VX)
	}
	if e.State != EnemyWandering {
		t.Fatalf("expected wandering with no players, got %s", e.State)
	}
}

func TestRespawnQueueIsProcessedWhenDue(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("hunter", ZoneSlime2, 100, 100, firemageProgress(1, 0))
	e := h.placeEnemy(ZoneSlime2, 130, 100)
	e.HP = 1

	h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(130), TargetY: float(100)})
	h.step(nil)
	killedAt := h.now
	p.Zone = ZoneSafe

	h.stepAt(killedAt.Add(enemyRespawnDelay - time.Millisecond))
	if len(h.world.enemies) != 0 {
		t.Fatalf("respawned early")
	}
	h.stepAt(killedAt.Add(enemyRespawnDelay))
	if len(h.world.enemies) != 1 || h.world.enemies[0].Zone != ZoneSlime2 {
		t.Fatalf("expected one slime2 respawn, got %+v", h.world.enemies)
	}
	if h.world.PendingRespawns() != 0 {
		t.Fatalf("expected queue drained")
	}
}

func TestInitialPopulationSkipsSafeZone(t *testing.T) {
	w := New(DefaultConfig(), Deps{})
	counts := make(map[ZoneID]int)
	for _, e := range w.Enemies() {
		counts[e.Zone]++
		if e.X < 100 || e.X > DefaultWidth-100 || e.Y < 150 || e.Y > DefaultHeight-150 {
			t.Fatalf("enemy %s spawned outside the spawn area at (%.1f, %.1f)", e.ID, e.X, e.Y)
		}
	}
	for _, zone := range HostileZones {
		if counts[zone] != 6 {
			t.Fatalf("expected 6 enemies in %s, got %d", zone, counts[zone])
		}
	}
	if counts[ZoneSafe] != 0 {
		t.Fatalf("expected no enemies in safe zone")
	}
}

func TestCastOutcomes(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p", ZoneGrass, 400, 300, storage.ProgressRecord{})
	h.world.DrainNotices()

	if _, ok := h.world.Cast(p.ID, CastRequest{Slot: 6}); ok {
		t.Fatalf("expected slot outside the hotbar to be ignored")
	}
	if _, ok := h.world.Cast("ghost", CastRequest{Slot: 1}); ok {
		t.Fatalf("expected unknown player to be ignored")
	}

	result, _ := h.world.Cast(p.ID, CastRequest{Slot: 1})
	if !result.Denied || result.Reason != DenyNoClass {
		t.Fatalf("expected no_class denial, got %+v", result)
	}

	h.world.ChooseClass(p.ID, ClassFiremage)
	result, _ = h.world.Cast(p.ID, CastRequest{Slot: 2})
	if !result.Denied || result.Reason != DenyLocked {
		t.Fatalf("expected locked denial, got %+v", result)
	}

	result, _ = h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(500), TargetY: float(300)})
	if result.Denied || result.Cooldown != time.Second {
		t.Fatalf("expected ack with 1s cooldown, got %+v", result)
	}

	result, _ = h.world.Cast(p.ID, CastRequest{Slot: 1})
	if !result.Denied || result.Reason != DenyCooldown || result.Remaining != time.Second {
		t.Fatalf("expected cooldown denial with 1s remaining, got %+v", result)
	}

	p.Level = 3
	result, _ = h.world.Cast(p.ID, CastRequest{Slot: 2})
	if !result.Denied || result.Reason != DenyNoAbility {
		t.Fatalf("expected no_ability denial, got %+v", result)
	}

	notices := h.world.DrainNotices()
	if got := len(noticesOfKind(notices, NoticeCastDenied, p.ID)); got != 4 {
		t.Fatalf("expected 4 denials, got %d", got)
	}
	if got := len(noticesOfKind(notices, NoticeCastAck, p.ID)); got != 1 {
		t.Fatalf("expected 1 ack, got %d", got)
	}
}

func TestCastTargetIsClampedToWorld(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p", ZoneGrass, 400, 300, firemageProgress(1, 0))

	h.world.Cast(p.ID, CastRequest{Slot: 1, TargetX: float(-500), TargetY: float(300)})
	pr := h.world.projectiles[0]
	if pr.VX != -450 || pr.VY != 0 {
		t.Fatalf("expected leftward velocity, got (%.2f, %.2f)", pr.VX, pr.VY)
	}

	p.Cooldowns = CooldownTable{}
	h.world.Cast(p.ID, CastRequest{Slot: 1})
	pr = h.world.projectiles[1]
	if pr.VX != 0 || pr.VY != 0 {
		t.Fatalf("expected missing target to default to caster, got (%.2f, %.2f)", pr.VX, pr.VY)
	}
}

func TestChooseClassCreatesAndPersistsBag(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p", ZoneGrass, 400, 300, storage.ProgressRecord{Gold: 12})
	h.world.DrainNotices()

	if h.world.ChooseClass(p.ID, "necromancer") {
		t.Fatalf("expected class outside the allow-list to be ignored")
	}
	if !h.world.ChooseClass(p.ID, ClassFiremage) {
		t.Fatalf("expected firemage selection")
	}
	if p.Class != ClassFiremage || p.Level != 1 || p.HPMax != stats.DefaultClassHP {
		t.Fatalf("unexpected player after class selection: %+v", p)
	}
	record := h.progress.records["p"]
	if record.SelectedClass != ClassFiremage || record.Gold != 12 {
		t.Fatalf("expected persisted selection, got %+v", record)
	}
	if _, ok := record.Classes[ClassFiremage]; !ok {
		t.Fatalf("expected class bag created")
	}
	if got := noticesOfKind(h.world.DrainNotices(), NoticeClassSelected, "p"); len(got) != 1 {
		t.Fatalf("expected one class confirmation, got %d", len(got))
	}
}

func TestAddPlayerMigratesLegacyClass(t *testing.T) {
	h := newHarness(t)
	legacy := storage.ProgressRecord{
		SelectedClass: "mage",
		Classes:       map[string]stats.ClassProgress{"mage": {Level: 3, XP: 40, HPMax: 110, HP: 0}},
	}
	p := h.world.AddPlayer("old", "", legacy, h.now)

	if p.Class != ClassFiremage || p.Level != 3 || p.HPMax != 110 || p.HP != 110 {
		t.Fatalf("expected migrated firemage bag, got %+v", p)
	}
	if p.Name != "old" {
		t.Fatalf("expected name defaulted to id, got %q", p.Name)
	}
}

func TestRemovePlayerPersistsProgress(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p", ZoneGrass, 400, 300, firemageProgress(2, 30))
	p.HP = 40

	record, ok := h.world.RemovePlayer("p", "disconnect")
	if !ok {
		t.Fatalf("expected removal")
	}
	if record.Classes[ClassFiremage].HP != 40 {
		t.Fatalf("expected live hp folded into progress, got %+v", record.Classes[ClassFiremage])
	}
	if _, ok := h.world.Player("p"); ok {
		t.Fatalf("expected player gone")
	}
	if h.progress.records["p"].Classes[ClassFiremage].XP != 30 {
		t.Fatalf("expected progress flushed on removal")
	}
}

func TestSnapshotFiltersZoneAndAugmentsSelf(t *testing.T) {
	h := newHarness(t)
	a := h.addPlayer("a", ZoneGrass, 100, 100, firemageProgress(3, 0))
	h.addPlayer("b", ZoneGrass, 200, 100, firemageProgress(1, 0))
	h.addPlayer("c", ZoneSafe, 300, 100, storage.ProgressRecord{})
	h.placeEnemy(ZoneGrass, 400, 400)
	h.placeEnemy(ZoneSlime, 400, 400)

	snapshots := h.world.Snapshots()
	if len(snapshots) != 2 {
		t.Fatalf("expected grass and safe snapshots, got %d", len(snapshots))
	}
	grass := snapshots[ZoneGrass]
	if len(grass.Players) != 2 || len(grass.Enemies) != 1 {
		t.Fatalf("expected 2 players and 1 enemy in grass, got %d and %d", len(grass.Players), len(grass.Enemies))
	}

	view := grass.For(h.world, a.ID)
	for _, pv := range view.Players {
		switch pv.ID {
		case "a":
			if pv.TotalLevel != 3 || math.Abs(pv.RewardMult-1.1) > 1e-9 {
				t.Fatalf("expected self aggregates, got level %d mult %.3f", pv.TotalLevel, pv.RewardMult)
			}
		default:
			if pv.TotalLevel != 0 || pv.RewardMult != 0 {
				t.Fatalf("aggregates leaked onto %s", pv.ID)
			}
		}
	}
	for _, pv := range grass.Players {
		if pv.TotalLevel != 0 {
			t.Fatalf("For mutated the shared snapshot")
		}
	}
}

func TestReconnectKeepsInMemoryProgress(t *testing.T) {
	h := newHarness(t)
	p := h.addPlayer("p", ZoneGrass, 400, 300, firemageProgress(1, 0))
	p.Gold = 99
	p.progress.Gold = 99

	replaced := h.world.AddPlayer("p", "p", storage.ProgressRecord{}, h.now)
	if replaced.Gold != 99 || replaced.Class != ClassFiremage {
		t.Fatalf("expected in-memory progress kept, got %+v", replaced)
	}
	if h.world.PlayerCount() != 1 {
		t.Fatalf("expected a single record, got %d", h.world.PlayerCount())
	}
}
