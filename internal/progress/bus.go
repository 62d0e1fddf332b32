package progress

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Next once a task's queue has been closed and
// drained.
var ErrClosed = errors.New("progress queue closed")

// Bus is a registry of per-task event queues. Queues are created lazily on
// first publish or first consume and evicted via Close once the terminal
// event has been consumed. Each queue assumes exactly one live consumer;
// concurrent consumers on the same task would split events between them.
type Bus struct {
	mu     sync.Mutex
	queues map[string]*taskQueue
}

// NewBus constructs an empty registry.
func NewBus() *Bus {
	return &Bus{queues: make(map[string]*taskQueue)}
}

type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []Event
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (b *Bus) queue(taskID string) *taskQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[taskID]
	if !ok {
		q = newTaskQueue()
		b.queues[taskID] = q
	}
	return q
}

// Publish appends evt to the task's queue, filling in the task id and a
// wall-clock timestamp when absent. Publishing never blocks: queues are
// bounded only by memory.
func (b *Bus) Publish(taskID string, evt Event) {
	if evt.TaskID == "" {
		evt.TaskID = taskID
	}
	if evt.TS == 0 {
		evt.TS = float64(time.Now().UnixNano()) / float64(time.Second)
	}

	q := b.queue(taskID)
	q.mu.Lock()
	if !q.closed {
		q.events = append(q.events, evt)
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// Next blocks until an event is available for the task, the queue is closed,
// or ctx ends. Events are delivered exactly once, in publish order.
func (b *Bus) Next(ctx context.Context, taskID string) (Event, error) {
	q := b.queue(taskID)

	cancelWait := make(chan struct{})
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.events) > 0 {
			evt := q.events[0]
			q.events = q.events[1:]
			return evt, nil
		}
		if q.closed {
			return Event{}, ErrClosed
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return Event{}, err
			}
		}
		q.cond.Wait()
	}
}

// Close marks the task's queue closed and evicts it from the registry.
// Pending consumers are woken and observe ErrClosed once drained.
func (b *Bus) Close(taskID string) {
	b.mu.Lock()
	q, ok := b.queues[taskID]
	if ok {
		delete(b.queues, taskID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Pending reports how many queues are currently registered.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues)
}
