package task

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	pattern := regexp.MustCompile(`^\d{14}_[0-9a-f]{32}$`)
	if !pattern.MatchString(id) {
		t.Fatalf("unexpected id format: %s", id)
	}
}

func TestNewIDTimeOrdered(t *testing.T) {
	earlier := newIDAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	later := newIDAt(time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC))
	if !(earlier < later) {
		t.Fatalf("ids should sort by timestamp: %s vs %s", earlier, later)
	}
	if !strings.HasPrefix(earlier, "20260102030405_") {
		t.Fatalf("timestamp prefix mismatch: %s", earlier)
	}
}

func TestNewIDConcurrentUniqueness(t *testing.T) {
	const n = 500
	var mu sync.Mutex
	seen := make(map[string]struct{}, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewID()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d unique ids, got %d", n, len(seen))
	}
}

func TestCreateWorkspaceLayout(t *testing.T) {
	dataDir := t.TempDir()
	ws, err := CreateWorkspace(dataDir, "20260102030405_abc")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	for _, dir := range []string{ws.Raw, ws.Converted, ws.Transcript, ws.Summary} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("missing workspace dir %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
	if ws.Root != filepath.Join(dataDir, "20260102030405_abc") {
		t.Fatalf("unexpected root: %s", ws.Root)
	}
}

func TestCreateWorkspaceIdempotent(t *testing.T) {
	dataDir := t.TempDir()
	first, err := CreateWorkspace(dataDir, "task")
	if err != nil {
		t.Fatal(err)
	}
	second, err := CreateWorkspace(dataDir, "task")
	if err != nil {
		t.Fatalf("second create should succeed: %v", err)
	}
	if first != second {
		t.Fatalf("workspace paths changed between calls: %+v vs %+v", first, second)
	}
}

func TestDeriveTitle(t *testing.T) {
	cases := map[string]string{
		"team_sync-weekly.mp3":    "Team Sync Weekly",
		"/data/raw/standup 2.wav": "Standup 2",
		"???.m4a":                 "Untitled Meeting",
		"":                        "Untitled Meeting",
	}
	for input, want := range cases {
		if got := DeriveTitle(input); got != want {
			t.Fatalf("DeriveTitle(%q) = %q, want %q", input, got, want)
		}
	}
}
