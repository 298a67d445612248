// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MemoryDBPath selects the in-memory storage backend.
const MemoryDBPath = "memory"

// Config is the full set of operator tunables.
type Config struct {
	Addr            string        `env:"ADDR"              envDefault:":3000"`
	JWTSecret       string        `env:"JWT_SECRET"        envDefault:"dev-secret-change-me"`
	DBPath          string        `env:"DB_PATH"           envDefault:"data.db"`
	TickRate        int           `env:"TICK_RATE"         envDefault:"30"`
	PersistDebounce time.Duration `env:"PERSIST_DEBOUNCE"  envDefault:"200ms"`
	ClientDir       string        `env:"CLIENT_DIR"`

	LogLevel     string `env:"LOG_LEVEL"      envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT"     envDefault:"console"`
	LogFile      string `env:"LOG_FILE"`
	EventLogFile string `env:"EVENT_LOG_FILE"`
	EventLevel   string `env:"EVENT_LEVEL"    envDefault:"info"`
	EventBuffer  int    `env:"EVENT_BUFFER"   envDefault:"512"`

	DebugTelemetry   bool `env:"DEBUG_TELEMETRY"`
	EnablePprofTrace bool `env:"ENABLE_PPROF_TRACE"`

	AdmissionRate   float64 `env:"ADMISSION_RATE"    envDefault:"5"`
	AdmissionBurst  int     `env:"ADMISSION_BURST"   envDefault:"10"`
	MoveRateLimit   int     `env:"MOVE_RATE_LIMIT"   envDefault:"50"`
	ActionRateLimit int     `env:"ACTION_RATE_LIMIT" envDefault:"10"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses values from the given map instead of the process
// environment.
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MemoryStorage reports whether progress should live only in process memory.
func (c Config) MemoryStorage() bool {
	path := strings.TrimSpace(c.DBPath)
	return path == "" || path == MemoryDBPath
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("TICK_RATE must be positive, got %d", c.TickRate)
	}
	if c.PersistDebounce < 0 {
		return fmt.Errorf("PERSIST_DEBOUNCE must not be negative, got %s", c.PersistDebounce)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("EVENT_BUFFER must not be negative, got %d", c.EventBuffer)
	}
	return nil
}
