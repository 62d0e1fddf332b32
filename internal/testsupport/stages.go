package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// StageRecorder captures the JSON payloads a canned stage server received.
type StageRecorder struct {
	mu       sync.Mutex
	requests []map[string]any
}

// Requests returns a copy of the captured payloads in arrival order.
func (r *StageRecorder) Requests() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, len(r.requests))
	copy(out, r.requests)
	return out
}

// Count returns how many calls the stage server received.
func (r *StageRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *StageRecorder) append(payload map[string]any) {
	r.mu.Lock()
	r.requests = append(r.requests, payload)
	r.mu.Unlock()
}

// NewStage starts a canned stage processor that records every request and
// answers with the given response encoded as JSON. The server is shut down
// when the test ends.
func NewStage(t testing.TB, response any) (*httptest.Server, *StageRecorder) {
	t.Helper()
	return NewStageWithStatus(t, response, http.StatusOK)
}

// NewStageWithStatus is NewStage with an explicit response status code.
func NewStageWithStatus(t testing.TB, response any, status int) (*httptest.Server, *StageRecorder) {
	t.Helper()

	recorder := &StageRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		recorder.append(payload)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if response != nil {
			_ = json.NewEncoder(w).Encode(response)
		}
	}))
	t.Cleanup(server.Close)
	return server, recorder
}
