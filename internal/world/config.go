package world

import "strings"

// DefaultEnemiesPerZone is the population each hostile zone starts with.
const DefaultEnemiesPerZone = 6

// Config sizes the world. Every zone shares the same dimensions.
type Config struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Seed           string  `json:"seed"`
	EnemiesPerZone int     `json:"enemiesPerZone"`
}

func DefaultConfig() Config {
	return Config{
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		Seed:           DefaultSeed,
		EnemiesPerZone: DefaultEnemiesPerZone,
	}
}

// Normalized fills unset fields from DefaultConfig. A zero population is kept
// so tests can run empty zones.
func (cfg Config) Normalized() Config {
	def := DefaultConfig()
	if cfg.Seed = strings.TrimSpace(cfg.Seed); cfg.Seed == "" {
		cfg.Seed = def.Seed
	}
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	cfg.EnemiesPerZone = max(cfg.EnemiesPerZone, 0)
	return cfg
}
