package server

import (
	"go.uber.org/zap"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/sim"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/world"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

// HubConfig captures the tunables and collaborators used to build a Hub.
type HubConfig struct {
	World          world.Config
	Loop           sim.LoopConfig
	OutboundQueue  int
	DebugTelemetry bool

	Logger  *zap.Logger
	Metrics *logging.Metrics
	Clock   logging.Clock
	RNG     world.RNGFactory
}

// DefaultHubConfig returns the production configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		World:         world.DefaultConfig(),
		Loop:          sim.DefaultLoopConfig(),
		OutboundQueue: outboundQueueSize,
	}
}

func (cfg HubConfig) normalized() HubConfig {
	normalized := cfg
	normalized.World = normalized.World.Normalized()
	if normalized.OutboundQueue <= 0 {
		normalized.OutboundQueue = outboundQueueSize
	}
	if normalized.Logger == nil {
		normalized.Logger = zap.NewNop()
	}
	if normalized.Metrics == nil {
		normalized.Metrics = &logging.Metrics{}
	}
	if normalized.Clock == nil {
		normalized.Clock = logging.SystemClock{}
	}
	return normalized
}
