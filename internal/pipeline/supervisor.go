package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"recap/internal/logging"
	"recap/internal/progress"
)

// Supervisor owns the goroutines running asynchronous pipeline tasks. Every
// launched task is tracked until it returns so shutdown can join cleanly,
// and a panicking task is converted into a terminal error event instead of
// crashing the process.
type Supervisor struct {
	logger *slog.Logger
	bus    *progress.Bus

	mu      sync.Mutex
	wg      sync.WaitGroup
	running map[string]struct{}
}

// NewSupervisor constructs a supervisor publishing failure events to bus.
func NewSupervisor(logger *slog.Logger, bus *progress.Bus) *Supervisor {
	return &Supervisor{
		logger:  logging.NewComponentLogger(logger, "supervisor"),
		bus:     bus,
		running: make(map[string]struct{}),
	}
}

// Launch starts run on its own goroutine, detached from the caller's request
// context. The returned error from run is assumed to have been reported
// through the event bus already and is only logged here.
func (s *Supervisor) Launch(taskID string, run func(ctx context.Context) error) {
	s.mu.Lock()
	s.running[taskID] = struct{}{}
	s.mu.Unlock()
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, taskID)
			s.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("task panicked",
					logging.String(logging.FieldTaskID, taskID),
					logging.Any("panic", rec),
				)
				s.bus.Publish(taskID, progress.Event{
					Service: "orchestrator",
					Step:    "orchestrator",
					Status:  progress.StatusError,
					Message: fmt.Sprintf("internal failure: %v", rec),
					Final:   true,
				})
			}
		}()

		if err := run(context.Background()); err != nil {
			s.logger.Error("task failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err),
			)
		}
	}()
}

// Running lists the ids of tasks currently in flight, sorted for stable
// output.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until every launched task has returned or ctx expires.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
