// Package telemetry decouples counter producers from the registry that
// serves them on /diagnostics.
package telemetry

import "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"

// Metrics is the counter surface producers write to. Add accumulates,
// Store overwrites gauges.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// FromRegistry writes into the shared registry. A nil registry discards.
func FromRegistry(registry *logging.Metrics) Metrics {
	if registry == nil {
		return Discard
	}
	return registryMetrics{registry}
}

type registryMetrics struct{ registry *logging.Metrics }

func (m registryMetrics) Add(key string, delta uint64) { m.registry.TelemetryAdd(key, delta) }
func (m registryMetrics) Store(key string, value uint64) { m.registry.TelemetryStore(key, value) }

// Discard drops every write.
var Discard Metrics = discard{}

type discard struct{}

func (discard) Add(string, uint64) {}
func (discard) Store(string, uint64) {}

// OrDiscard returns m, or Discard when m is nil.
func OrDiscard(m Metrics) Metrics {
	if m == nil {
		return Discard
	}
	return m
}
