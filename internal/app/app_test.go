package app

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/config"
)

func TestRunServesHealthAndShutsDown(t *testing.T) {
	settings, err := config.LoadFrom(map[string]string{
		"ADDR":    "127.0.0.1:0",
		"DB_PATH": config.MemoryDBPath,
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{
			Settings: settings,
			Logger:   zap.NewNop(),
			Ready:    func(addr string) { ready <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestRunRejectsInvalidSettings(t *testing.T) {
	settings := config.Config{TickRate: 0, JWTSecret: "x", LogFormat: "console"}
	if err := Run(context.Background(), Config{Settings: settings, Logger: zap.NewNop()}); err == nil {
		t.Fatalf("expected validation error")
	}
}
