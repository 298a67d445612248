package world

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/lifecycle"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/stats"
)

// RNGFactory produces deterministic RNG instances for world subsystems.
type RNGFactory func(rootSeed, label string) *rand.Rand

// ProgressWriter receives progress documents whenever the economy changes
// them. Implementations must not block.
type ProgressWriter interface {
	SetProgress(id string, record storage.ProgressRecord)
}

// Intent is the latest movement intent received for a player.
type Intent struct {
	DX         float64
	DY         float64
	Seq        uint32
	ReceivedAt time.Time
}

// IntentSource exposes the latest intent per player to the step.
type IntentSource interface {
	Intent(playerID string) (Intent, bool)
}

// Deps bundles runtime dependencies required to construct a World instance.
type Deps struct {
	Publisher logging.Publisher
	RNG       RNGFactory
	Progress  ProgressWriter
}

// StepContext carries the tick number, wall time and elapsed seconds.
type StepContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

type respawnJob struct {
	at    time.Time
	count int
	zone  ZoneID
}

// World owns every mutable gameplay entity. It is not safe for concurrent use;
// the tick loop is its only caller.
type World struct {
	config Config
	width  float64
	height float64

	publisher logging.Publisher
	rng       *rand.Rand
	progress  ProgressWriter

	players     map[string]*Player
	playerOrder []string
	enemies     []*Enemy
	projectiles []*Projectile
	respawns    []respawnJob

	nextEnemyID      uint64
	nextProjectileID uint64

	notices noticeBuffer
	tick    uint64
	now     time.Time
}

// New constructs a world and seeds each hostile zone with its initial enemies.
func New(cfg Config, deps Deps) *World {
	normalized := cfg.Normalized()

	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	w := &World{
		config:    normalized,
		width:     normalized.Width,
		height:    normalized.Height,
		publisher: publisher,
		rng:       factory(normalized.Seed, "world"),
		progress:  deps.Progress,
		players:   make(map[string]*Player),
	}
	for _, zone := range HostileZones {
		w.spawnEnemies(zone, normalized.EnemiesPerZone)
	}
	return w
}

// Config returns the normalized configuration.
func (w *World) Config() Config {
	return w.config
}

// Dimensions returns the world width and height.
func (w *World) Dimensions() (float64, float64) {
	return w.width, w.height
}

// Now returns the simulation time of the last step.
func (w *World) Now() time.Time {
	return w.now
}

// Tick returns the tick number of the last step.
func (w *World) Tick() uint64 {
	return w.tick
}

// Begin sets the tick clock used by commands applied ahead of the step.
func (w *World) Begin(ctx StepContext) {
	w.tick = ctx.Tick
	if !ctx.Now.IsZero() {
		w.now = ctx.Now
	}
}

// Step advances the simulation by one tick: movement and zone transitions,
// projectiles, enemies, then the respawn queue.
func (w *World) Step(ctx StepContext, intents IntentSource) {
	w.Begin(ctx)
	dt := ctx.Delta
	if dt < 0 {
		dt = 0
	}
	w.stepPlayers(dt, intents)
	w.stepProjectiles(dt)
	w.stepEnemies(dt)
	w.processRespawns()
}

// DrainNotices returns and clears the notices produced since the last drain.
func (w *World) DrainNotices() []Notice {
	return w.notices.drain()
}

// Player returns the live record for id.
func (w *World) Player(id string) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// Players returns the live records in join order.
func (w *World) Players() []*Player {
	out := make([]*Player, 0, len(w.playerOrder))
	for _, id := range w.playerOrder {
		out = append(out, w.players[id])
	}
	return out
}

// PlayerCount reports how many players are in the world.
func (w *World) PlayerCount() int {
	return len(w.players)
}

// Enemies returns the live enemies in spawn order.
func (w *World) Enemies() []*Enemy {
	return append([]*Enemy(nil), w.enemies...)
}

// Projectiles returns the live projectiles in launch order.
func (w *World) Projectiles() []*Projectile {
	return append([]*Projectile(nil), w.projectiles...)
}

// AddPlayer admits an account into the default zone using its persisted
// progress. A player already present is replaced; its in-memory progress is
// newer than anything read from storage and is kept.
func (w *World) AddPlayer(id, name string, progress storage.ProgressRecord, now time.Time) *Player {
	if now.IsZero() {
		now = w.now
	}
	if existing, ok := w.players[id]; ok {
		progress = existing.progress.Clone()
		w.RemovePlayer(id, "replaced")
	}
	if progress.Classes == nil {
		progress.Classes = make(map[string]stats.ClassProgress)
	}
	storage.MigrateProgress(&progress)

	x, y := around(w.width/2, w.height/2, spawnJitter).sample(w.rng)
	p := &Player{
		ID:         id,
		Name:       name,
		Zone:       DefaultZone,
		X:          x,
		Y:          y,
		HP:         stats.DefaultClassHP,
		HPMax:      stats.DefaultClassHP,
		Level:      1,
		Gold:       progress.Gold,
		Checkpoint: DefaultCheckpoint(w.width, w.height),
		progress:   progress,
	}
	if p.Name == "" {
		p.Name = id
	}
	if ClassAllowed(progress.SelectedClass) {
		p.Class = progress.SelectedClass
		bag, ok := progress.Classes[p.Class]
		if !ok {
			bag = stats.NewClassProgress()
		}
		p.mirrorBag(bag.Normalized())
	} else {
		p.progress.SelectedClass = ""
	}

	w.players[id] = p
	w.playerOrder = append(w.playerOrder, id)

	view := w.playerView(p)
	w.notices.push(Notice{Kind: NoticePlayerJoined, PlayerID: id, Zone: p.Zone, Player: &view})
	lifecycle.PlayerJoined(context.Background(), w.publisher, w.tick, logging.PlayerRef(id), lifecycle.PlayerJoinedPayload{
		Zone:   string(p.Zone),
		SpawnX: p.X,
		SpawnY: p.Y,
		Class:  p.Class,
	}, nil)
	return p
}

// RemovePlayer drops the player, persisting its progress first. It returns
// the final progress document.
func (w *World) RemovePlayer(id, reason string) (storage.ProgressRecord, bool) {
	p, ok := w.players[id]
	if !ok {
		return storage.ProgressRecord{}, false
	}
	record := p.Progress()
	if w.progress != nil {
		w.progress.SetProgress(id, record)
	}
	delete(w.players, id)
	for i, existing := range w.playerOrder {
		if existing == id {
			w.playerOrder = append(w.playerOrder[:i], w.playerOrder[i+1:]...)
			break
		}
	}
	w.notices.push(Notice{Kind: NoticePlayerLeft, PlayerID: id, Zone: p.Zone})
	lifecycle.PlayerDisconnected(context.Background(), w.publisher, w.tick, logging.PlayerRef(id), lifecycle.PlayerDisconnectedPayload{Reason: reason}, nil)
	return record, true
}

// ChooseClass switches a player to an allowed class, creating the class bag
// on first selection. Unknown classes are ignored.
func (w *World) ChooseClass(id, class string) bool {
	p, ok := w.players[id]
	if !ok || !ClassAllowed(class) {
		return false
	}
	if current, ok := p.activeBag(); ok {
		current.HP = max(0, min(current.HPMax, p.HP))
		p.progress.Classes[p.Class] = current
	}
	bag, ok := p.progress.Classes[class]
	if !ok {
		bag = stats.NewClassProgress()
	}
	p.Class = class
	p.progress.SelectedClass = class
	p.mirrorBag(bag.Normalized())
	w.persist(p)

	w.notices.push(Notice{
		Kind:     NoticeClassSelected,
		PlayerID: id,
		Zone:     p.Zone,
		Class:    &ClassSelection{Class: class, Level: p.Level},
	})
	lifecycle.ClassSelected(context.Background(), w.publisher, w.tick, logging.PlayerRef(id), lifecycle.ClassSelectedPayload{Class: class, Level: p.Level}, nil)
	return true
}

func (w *World) persist(p *Player) {
	if w.progress == nil || p == nil {
		return
	}
	w.progress.SetProgress(p.ID, p.Progress())
}

func (w *World) nextEnemy() string {
	w.nextEnemyID++
	return strconv.FormatUint(w.nextEnemyID, 10)
}

func (w *World) nextProjectile() string {
	w.nextProjectileID++
	return strconv.FormatUint(w.nextProjectileID, 10)
}

// nearestPlayer finds the closest player in zone to (x, y).
func (w *World) nearestPlayer(zone ZoneID, x, y float64) (*Player, float64) {
	var nearest *Player
	best := 0.0
	for _, id := range w.playerOrder {
		p := w.players[id]
		if p.Zone != zone {
			continue
		}
		d := distance(x, y, p.X, p.Y)
		if nearest == nil || d < best {
			nearest = p
			best = d
		}
	}
	return nearest, best
}
