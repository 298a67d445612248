// Command bot drives the client engine against a running server: it holds a
// wandering direction, casts at the nearest enemy and logs what it renders.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/client"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/auth"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/observability"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
)

const (
	frameRate         = 60
	heartbeatInterval = 2 * time.Second
	wanderInterval    = 1500 * time.Millisecond
	reportInterval    = 5 * time.Second
	tokenTTL          = 24 * time.Hour
)

type options struct {
	url      string
	account  string
	token    string
	secret   string
	class    string
	castRate float64
	duration time.Duration
	logLevel string
}

func main() {
	var opts options
	flag.StringVar(&opts.url, "url", "ws://localhost:3000/ws", "websocket endpoint")
	flag.StringVar(&opts.account, "account", "bot", "account id to sign a token for")
	flag.StringVar(&opts.token, "token", "", "bearer token; signed locally from -secret when empty")
	flag.StringVar(&opts.secret, "secret", envOr("JWT_SECRET", "dev-secret-change-me"), "token signing secret")
	flag.StringVar(&opts.class, "class", world.ClassFiremage, "class to select after joining")
	flag.Float64Var(&opts.castRate, "cast-rate", 2, "maximum cast requests per second")
	flag.DurationVar(&opts.duration, "duration", 0, "stop after this long; zero runs until interrupted")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flag.Parse()

	logger, closeLogger, err := observability.NewLogger(observability.LoggerConfig{Level: opts.logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("bot stopped", zap.Error(err))
		closeLogger()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	token := opts.token
	if token == "" {
		signed, err := auth.NewSigner(opts.secret, nil).Sign(opts.account, tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		token = signed
	}

	conn, err := client.Dial(ctx, opts.url, token)
	if err != nil {
		return err
	}
	defer conn.Close()

	session := client.NewSession(conn, nil, client.SessionConfig{
		CastRate:  rate.Limit(opts.castRate),
		CastBurst: 1,
		Logger:    logger,
	})
	b := newBot(session, opts.class, rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return fmt.Errorf("connection lost: %w", conn.Err())
		case data := <-conn.Inbound():
			if err := session.HandleMessage(time.Now(), data); err != nil {
				logger.Debug("discarding frame", zap.Error(err))
			}
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := b.frame(now, dt); err != nil {
				return err
			}
		}
	}
}

// bot holds the scripted behaviour layered over a client session.
type bot struct {
	session *client.Session
	class   string
	rng     *rand.Rand
	logger  *zap.Logger

	classRequested bool
	nextWander     time.Time
	nextHeartbeat  time.Time
	nextReport     time.Time
}

func newBot(session *client.Session, class string, rng *rand.Rand, logger *zap.Logger) *bot {
	return &bot{session: session, class: class, rng: rng, logger: logger}
}

func (b *bot) frame(now time.Time, dt float64) error {
	_, self, joined := b.session.Self()
	if !joined {
		return nil
	}
	if !b.classRequested && self.Class == "" && b.class != "" {
		if err := b.session.ChooseClass(b.class); err != nil {
			return err
		}
		b.classRequested = true
	}
	if !now.Before(b.nextHeartbeat) {
		if err := b.session.Heartbeat(now); err != nil {
			return err
		}
		b.nextHeartbeat = now.Add(heartbeatInterval)
	}
	if !now.Before(b.nextWander) {
		b.session.Input().Set(wanderKeys(b.rng.Intn(9))...)
		b.nextWander = now.Add(wanderInterval)
	}

	if err := b.session.Step(now, dt); err != nil {
		return err
	}
	frame := b.session.Render(now)

	if target, ok := nearestEnemy(frame); ok {
		if _, err := b.session.Cast(now, 1, target); err != nil {
			return err
		}
	}

	if !now.Before(b.nextReport) {
		pos, _, _ := b.session.Self()
		b.logger.Info("bot frame",
			zap.String("zone", frame.Zone),
			zap.Float64("x", pos.X),
			zap.Float64("y", pos.Y),
			zap.Int("players", len(frame.Players)),
			zap.Int("enemies", len(frame.Enemies)),
			zap.Int("corrections", b.session.Corrections()),
			zap.Duration("rtt", b.session.RTT()),
		)
		b.nextReport = now.Add(reportInterval)
	}
	return nil
}

// wanderKeys maps 0..8 onto the eight directions plus standing still.
func wanderKeys(n int) []client.Key {
	switch n % 9 {
	case 0:
		return nil
	case 1:
		return []client.Key{client.KeyUp}
	case 2:
		return []client.Key{client.KeyDown}
	case 3:
		return []client.Key{client.KeyLeft}
	case 4:
		return []client.Key{client.KeyRight}
	case 5:
		return []client.Key{client.KeyUp, client.KeyLeft}
	case 6:
		return []client.Key{client.KeyUp, client.KeyRight}
	case 7:
		return []client.Key{client.KeyDown, client.KeyLeft}
	default:
		return []client.Key{client.KeyDown, client.KeyRight}
	}
}

func nearestEnemy(frame client.Frame) (client.Vec, bool) {
	var self client.Vec
	found := false
	for _, p := range frame.Players {
		if p.Self {
			self = p.Pos
			found = true
			break
		}
	}
	if !found {
		return client.Vec{}, false
	}
	best := math.Inf(1)
	var target client.Vec
	for _, e := range frame.Enemies {
		if e.HP <= 0 {
			continue
		}
		d := math.Hypot(e.X-self.X, e.Y-self.Y)
		if d < best {
			best = d
			target = client.Vec{X: e.X, Y: e.Y}
		}
	}
	return target, !math.IsInf(best, 1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
