package progress

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPublishThenNextPreservesOrder(t *testing.T) {
	bus := NewBus()
	for i := 0; i < 5; i++ {
		bus.Publish("t1", Event{Status: StatusProgress, Progress: float64(i * 10)})
	}

	for i := 0; i < 5; i++ {
		evt, err := bus.Next(context.Background(), "t1")
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if evt.Progress != float64(i*10) {
			t.Fatalf("event %d out of order: progress=%v", i, evt.Progress)
		}
		if evt.TaskID != "t1" {
			t.Fatalf("task id not filled in: %+v", evt)
		}
		if evt.TS == 0 {
			t.Fatal("timestamp not filled in")
		}
	}
}

func TestNextBlocksUntilPublish(t *testing.T) {
	bus := NewBus()
	done := make(chan Event, 1)

	go func() {
		evt, err := bus.Next(context.Background(), "t1")
		if err != nil {
			return
		}
		done <- evt
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Next returned before any publish")
	default:
	}

	bus.Publish("t1", Event{Status: StatusStarted, Progress: 5})
	select {
	case evt := <-done:
		if evt.Status != StatusStarted {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake after publish")
	}
}

func TestNextHonorsContextCancellation(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := bus.Next(ctx, "t1")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}

func TestCloseEvictsAndWakesConsumer(t *testing.T) {
	bus := NewBus()
	bus.Publish("t1", Event{Status: StatusProgress})
	if bus.Pending() != 1 {
		t.Fatalf("expected one registered queue, got %d", bus.Pending())
	}

	errCh := make(chan error, 1)
	go func() {
		// First Next drains the published event, second blocks until Close.
		if _, err := bus.Next(context.Background(), "t1"); err != nil {
			errCh <- err
			return
		}
		_, err := bus.Next(context.Background(), "t1")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Close("t1")

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer not woken by Close")
	}
	if bus.Pending() != 0 {
		t.Fatalf("queue not evicted: %d remain", bus.Pending())
	}
}

func TestTerminalPredicate(t *testing.T) {
	cases := []struct {
		evt  Event
		want bool
	}{
		{Event{Final: true}, true},
		{Event{Service: "orchestrator", Step: "done"}, true},
		{Event{Service: "orchestrator", Step: "summarize"}, false},
		{Event{Service: "whisper", Step: "done"}, false},
		{Event{Status: StatusError}, false},
	}
	for _, tc := range cases {
		if got := tc.evt.Terminal(); got != tc.want {
			t.Fatalf("Terminal(%+v) = %v, want %v", tc.evt, got, tc.want)
		}
	}
}

func TestMapSubProgressEndpoints(t *testing.T) {
	if got := MapSubProgress(0, 10, 26, 50); got != 26 {
		t.Fatalf("done=0 should map to pmin, got %v", got)
	}
	if got := MapSubProgress(10, 10, 26, 50); got != 50 {
		t.Fatalf("done=total should map to pmax, got %v", got)
	}
	if got := MapSubProgress(5, 10, 26, 50); got != 38 {
		t.Fatalf("midpoint should be linear, got %v", got)
	}
	if got := MapSubProgress(3, 0, 26, 50); got != 26 {
		t.Fatalf("total=0 should map to pmin, got %v", got)
	}
	if got := MapSubProgress(20, 10, 26, 50); got != 50 {
		t.Fatalf("overshoot should clamp to pmax, got %v", got)
	}
}

func TestServeStreamTerminatesOnFinalEvent(t *testing.T) {
	bus := NewBus()
	bus.Publish("t1", Event{Status: StatusStarted, Progress: 5})
	bus.Publish("t1", Event{Status: StatusProgress, Progress: 40})
	bus.Publish("t1", Event{Service: "orchestrator", Step: "done", Status: StatusCompleted, Progress: 100, Final: true})

	var out strings.Builder
	if err := ServeStream(context.Background(), &out, bus, "t1"); err != nil {
		t.Fatalf("serve stream: %v", err)
	}

	text := out.String()
	if !strings.HasPrefix(text, ":ok\n\n") {
		t.Fatalf("missing keep-alive prologue: %q", text)
	}
	if got := strings.Count(text, "data: "); got != 3 {
		t.Fatalf("expected 3 data frames, got %d: %q", got, text)
	}
	if !strings.Contains(text, `"step":"done"`) {
		t.Fatalf("terminal frame missing: %q", text)
	}
	if bus.Pending() != 0 {
		t.Fatal("queue should be evicted after terminal frame")
	}
}

func TestServeStreamDoesNotEndOnOrdinaryProgress(t *testing.T) {
	bus := NewBus()
	bus.Publish("t1", Event{Status: StatusProgress, Progress: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out strings.Builder
	err := ServeStream(ctx, &out, bus, "t1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("stream should still be waiting, got %v", err)
	}
	if strings.Count(out.String(), "data: ") != 1 {
		t.Fatalf("expected exactly one frame before timeout: %q", out.String())
	}
}
