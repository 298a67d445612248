package logging

import (
	"maps"
	"time"
)

// Config tunes the event router. Sinks are supplied separately; JSON only
// carries the file sink settings when one is wanted.
type Config struct {
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	DropWarnInterval time.Duration
	JSON             JSONConfig
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

// Enabled reports whether events should also be written to a JSON file.
func (c JSONConfig) Enabled() bool { return c.FilePath != "" }

func DefaultConfig() Config {
	return Config{
		BufferSize:       defaultRouterBuffer,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON:             JSONConfig{FlushInterval: 2 * time.Second},
	}
}

// WithField returns a copy stamping key onto every published event.
func (c Config) WithField(key string, value any) Config {
	fields := make(map[string]any, len(c.Fields)+1)
	maps.Copy(fields, c.Fields)
	fields[key] = value
	c.Fields = fields
	return c
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	return maps.Clone(c.Fields)
}
