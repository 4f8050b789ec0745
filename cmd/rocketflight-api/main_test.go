package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/config"
	"github.com/signalsfoundry/rocketflight/internal/logging"
)

func TestServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := config.Config{
		Store:   config.Store{Backend: config.BackendMemory, InitAttempts: 1, InitBackoff: time.Millisecond},
		Tracing: config.Tracing{ServiceName: "rocketflight-test", SampleRatio: 1},
	}
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	base := "http://" + lis.Addr().String()
	client := &http.Client{Timeout: time.Second}
	var healthy bool
	for i := 0; i < 50 && !healthy; i++ {
		resp, err := client.Get(base + "/health")
		if err == nil {
			healthy = resp.StatusCode == http.StatusOK
			resp.Body.Close()
		}
		if !healthy {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if !healthy {
		t.Fatalf("server never became healthy")
	}

	resp, err := client.Post(base+"/environments/", "application/json", strings.NewReader(`{"latitude": 0, "longitude": 0}`))
	if err != nil {
		t.Fatalf("POST /environments/: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /environments/ status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
}

func TestSetupBuildsLoggerFromDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "STORE_BACKEND=memory\nLOG_LEVEL=debug\nLOG_FORMAT=json\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	for _, key := range []string{"STORE_BACKEND", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	var buf bytes.Buffer
	cfg, log, err := setup(path, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if cfg.Store.Backend != config.BackendMemory {
		t.Fatalf("Backend = %q, want memory", cfg.Store.Backend)
	}
	log.Debug(context.Background(), "configured")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("debug record is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "configured" {
		t.Fatalf("msg = %v, want configured", rec["msg"])
	}
}
