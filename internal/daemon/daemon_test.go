package daemon

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recap/internal/logging"
	"recap/internal/record"
	"recap/internal/testsupport"
)

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store, err := record.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	d, err := New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("daemon should report running")
	}
	if d.Addr() == "" {
		t.Fatal("gateway address not bound")
	}

	resp, err := http.Get("http://" + d.Addr() + "/api/tasks")
	if err != nil {
		t.Fatalf("gateway not reachable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tasks status = %d", resp.StatusCode)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon should report stopped")
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := record.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	first, err := New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("new first daemon: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	second, err := New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	err = second.Start(ctx)
	if err == nil {
		second.Stop()
		t.Fatal("second instance must not start while the lock is held")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDaemonWatcherIngestsDroppedFile(t *testing.T) {
	watchDir := t.TempDir()
	d := newTestDaemon(t, testsupport.WithWatchDir(watchDir))

	// A dropped file goes through the full intake, so give the watcher real
	// stage endpoints for the async pipeline it launches. The stages fail
	// fast here; ingestion itself is what is under test.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	testsupport.WriteFile(t, filepath.Join(watchDir, "retro.wav"), "wav-bytes")

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, err := filepath.Glob(filepath.Join(d.cfg.Paths.DataDir, "*", "raw", "retro.wav"))
		if err == nil && len(entries) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dropped file was not ingested into a workspace")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
