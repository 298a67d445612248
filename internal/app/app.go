package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	server "github.com/otaviokmkm/Drakantos-Inspired-MMORPG"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/auth"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/config"
	servernet "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/intake"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/ws"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/observability"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage/sqlite"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/telemetry"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	loggingSinks "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/sinks"
)

const (
	shutdownTimeout       = 5 * time.Second
	admissionPruneEvery   = time.Minute
	admissionIdleForget   = 5 * time.Minute
	shutdownReason        = "shutdown"
	eventServiceFieldName = "service"
	eventServiceName      = "drakantos"
)

type Config struct {
	Settings config.Config
	// Logger overrides the logger built from Settings.
	Logger *zap.Logger
	// Ready, when set, is called with the bound address once the listener is up.
	Ready func(addr string)
}

// Run serves until ctx is cancelled, then stops the loop, persists every
// player and flushes storage and the event router.
func Run(ctx context.Context, cfg Config) error {
	settings := cfg.Settings
	if err := settings.Validate(); err != nil {
		return err
	}

	logger := cfg.Logger
	if logger == nil {
		built, closeLogger, err := observability.NewLogger(observability.LoggerConfig{
			Level:  settings.LogLevel,
			Format: settings.LogFormat,
			File:   settings.LogFile,
		})
		if err != nil {
			return fmt.Errorf("failed to construct logger: %w", err)
		}
		defer closeLogger()
		logger = built
	}

	router, err := newRouter(settings, logger)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Warn("failed to close logging router", zap.Error(cerr))
		}
	}()

	metrics := &logging.Metrics{}
	backend, err := openBackend(settings)
	if err != nil {
		return err
	}
	store := storage.NewWriteBehind(backend, storage.WriteBehindConfig{Debounce: settings.PersistDebounce}, storage.WriteBehindDeps{
		Logger:    logger,
		Publisher: router,
		Metrics:   telemetry.FromRegistry(metrics),
	})

	hubCfg := server.DefaultHubConfig()
	hubCfg.Loop.TickRate = settings.TickRate
	hubCfg.DebugTelemetry = settings.DebugTelemetry
	hubCfg.Logger = logger
	hubCfg.Metrics = metrics
	hub, err := server.NewHub(hubCfg, store, router)
	if err != nil {
		store.Close(context.Background())
		return fmt.Errorf("failed to construct hub: %w", err)
	}

	clientDir := settings.ClientDir
	if clientDir == "" {
		if dir, ok := resolveAssetsDir(); ok {
			clientDir = dir
		}
	}

	admission := intake.NewAdmissionLimiter(settings.AdmissionRate, settings.AdmissionBurst)
	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:     clientDir,
		Logger:        logger,
		Observability: observability.Config{EnablePprofTrace: settings.EnablePprofTrace},
		WebSocket: ws.HandlerConfig{
			Verifier:    auth.NewVerifier(settings.JWTSecret, nil),
			Admission:   admission,
			MoveLimit:   settings.MoveRateLimit,
			ActionLimit: settings.ActionRateLimit,
		},
		RouterStats: router.Stats,
	})

	listener, err := net.Listen("tcp", settings.Addr)
	if err != nil {
		store.Close(context.Background())
		return fmt.Errorf("listen on %s: %w", settings.Addr, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	stop := make(chan struct{})
	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		hub.RunSimulation(stop)
	}()
	go func() {
		defer background.Done()
		pruneAdmission(admission, stop)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	logger.Info("server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int("tickRate", hub.TickRate()),
		zap.Bool("memoryStorage", settings.MemoryStorage()),
		zap.String("clientDir", clientDir),
	)
	if cfg.Ready != nil {
		cfg.Ready(listener.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	close(stop)
	background.Wait()

	hub.Shutdown(shutdownReason)
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("failed to flush storage", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("flush storage: %w", err)
		}
	}
	logger.Info("server stopped")
	return runErr
}

func newRouter(settings config.Config, logger *zap.Logger) (*logging.Router, error) {
	logConfig := logging.DefaultConfig().WithField(eventServiceFieldName, eventServiceName)
	logConfig.MinimumSeverity = logging.ParseSeverity(settings.EventLevel)
	logConfig.BufferSize = settings.EventBuffer
	logConfig.JSON.FilePath = settings.EventLogFile

	sinks := []logging.NamedSink{{Name: "zap", Sink: loggingSinks.NewZap(logger)}}
	if logConfig.JSON.Enabled() {
		sinks = append(sinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSONFile(logConfig.JSON.FilePath, logConfig.JSON.FlushInterval),
		})
	}
	return logging.NewRouter(logging.SystemClock{}, logConfig, logger, sinks)
}

func openBackend(settings config.Config) (storage.Backend, error) {
	if settings.MemoryStorage() {
		return storage.NewMemory(), nil
	}
	store, err := sqlite.Open(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", settings.DBPath, err)
	}
	return store, nil
}

func pruneAdmission(admission *intake.AdmissionLimiter, stop <-chan struct{}) {
	ticker := time.NewTicker(admissionPruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			admission.Prune(now.Add(-admissionIdleForget))
		}
	}
}
