package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ServeStream writes the task's events to w as Server-Sent Events until a
// terminal event has been delivered, the queue is closed, or ctx ends. An
// immediate comment frame opens the channel reliably before the first event.
// After delivering the terminal frame the task's queue is evicted.
func ServeStream(ctx context.Context, w io.Writer, bus *Bus, taskID string) error {
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	if _, err := io.WriteString(w, ":ok\n\n"); err != nil {
		return err
	}
	flush()

	for {
		evt, err := bus.Next(ctx, taskID)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}

		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flush()

		if evt.Terminal() {
			bus.Close(taskID)
			return nil
		}
	}
}
