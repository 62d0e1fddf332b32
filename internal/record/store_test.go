package record

import (
	"context"
	"testing"

	"recap/internal/testsupport"
)

func TestRecordAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ids := []string{
		"20260101000000_aaaa",
		"20260102000000_bbbb",
		"20260103000000_cccc",
	}
	for _, id := range ids {
		if err := store.Record(context.Background(), id); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	got, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	// Most recent first.
	if got[0] != ids[2] || got[2] != ids[0] {
		t.Fatalf("unexpected ordering: %v", got)
	}
}

func TestRecordRejectsEmptyID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Record(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty task id")
	}
}

func TestListLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := store.Record(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied: %v", got)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Record(context.Background(), "task-1"); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	got, err := second.List(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "task-1" {
		t.Fatalf("rows not durable across reopen: %v", got)
	}
}
