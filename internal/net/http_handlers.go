package net

import (
	"encoding/json"
	nethttp "net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	server "github.com/otaviokmkm/Drakantos-Inspired-MMORPG"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/ws"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/observability"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        *zap.Logger
	Observability observability.Config
	WebSocket     ws.HandlerConfig
	// RouterStats reports the event router counters; nil omits them.
	RouterStats func() logging.RouterStats
	Now         func() time.Time
}

type diagnosticsPayload struct {
	Status     string                     `json:"status"`
	ServerTime int64                      `json:"serverTime"`
	Tick       uint64                     `json:"tick"`
	TickRate   int                        `json:"tickRate"`
	Players    []server.DiagnosticsPlayer `json:"players"`
	Telemetry  server.TelemetrySnapshot   `json:"telemetry"`
	Metrics    map[string]uint64          `json:"metrics,omitempty"`
	Events     *routerStatsPayload        `json:"events,omitempty"`
}

type routerStatsPayload struct {
	Total   uint64             `json:"total"`
	Dropped uint64             `json:"dropped"`
	Sinks   []sinkStatsPayload `json:"sinks,omitempty"`
}

type sinkStatsPayload struct {
	Name    string `json:"name"`
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	wsCfg := cfg.WebSocket
	if wsCfg.Logger == nil {
		wsCfg.Logger = logger
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		players := hub.DiagnosticsSnapshot()
		if players == nil {
			players = []server.DiagnosticsPlayer{}
		}
		payload := diagnosticsPayload{
			Status:     "ok",
			ServerTime: now().UnixMilli(),
			Tick:       hub.Tick(),
			TickRate:   hub.TickRate(),
			Players:    players,
			Telemetry:  hub.TelemetrySnapshot(),
			Metrics:    hub.Metrics().Snapshot(),
		}
		if cfg.RouterStats != nil {
			stats := cfg.RouterStats()
			events := &routerStatsPayload{Total: stats.EventsTotal, Dropped: stats.DroppedTotal}
			for _, sink := range stats.Sinks {
				events.Sinks = append(events.Sinks, sinkStatsPayload(sink))
			}
			payload.Events = events
		}
		writeJSON(w, logger, payload)
	})

	var (
		schemaOnce sync.Once
		schemaData []byte
		schemaErr  error
	)
	mux.HandleFunc("/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		schemaOnce.Do(func() {
			schemaData, schemaErr = json.MarshalIndent(proto.BuildSchema(), "", "  ")
		})
		if schemaErr != nil {
			logger.Error("failed to encode protocol schema", zap.Error(schemaErr))
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(schemaData)
	})

	wsHandler := ws.NewHandler(hub, wsCfg)
	mux.HandleFunc("/ws", wsHandler.Handle)

	cfg.Observability.Mount(mux)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger *zap.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to encode response", zap.Error(err))
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
