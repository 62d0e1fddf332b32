package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"recap/internal/logging"
	"recap/internal/progress"
	"recap/internal/services"
)

type uploadResponse struct {
	TaskID  string `json:"task_id"`
	Summary string `json:"summary,omitempty"`
}

type tasksResponse struct {
	Running   []string `json:"running"`
	Completed []string `json:"completed"`
}

// handleUpload ingests one media file and runs the pipeline, synchronously by
// default or detached when ?mode=async. Validation happens before any
// workspace or resource is allocated.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeClassified(w, services.Wrap(services.ErrValidation, "upload", "parse form", "missing file field", err))
		return
	}
	defer file.Close()

	t, err := s.prepareTask(file, header.Filename)
	if err != nil {
		s.writeClassified(w, err)
		return
	}

	if r.URL.Query().Get("mode") == "async" {
		s.launchAsync(t)
		s.writeJSON(w, http.StatusOK, uploadResponse{TaskID: t.ID})
		return
	}

	summary, err := s.runner.Run(r.Context(), t)
	if err != nil {
		s.writeClassified(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{TaskID: t.ID, Summary: summary})
}

// handleStream serves a task's progress queue as Server-Sent Events until the
// terminal frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	taskID, ok := pathTaskID(r.URL.Path, "/progress/stream/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "task id required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := progress.ServeStream(r.Context(), w, s.bus, taskID); err != nil {
		// Usually the client going away; the pipeline keeps running regardless.
		logging.WithTask(s.logger, taskID).Debug("progress stream ended", logging.Error(err))
	}
}

// handleProgressIngress accepts progress posted by stage processors and
// relays it onto the task's queue. Unknown fields in the posted body are
// dropped; publication always succeeds from the stage's perspective.
func (s *Server) handleProgressIngress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	taskID, ok := pathTaskID(r.URL.Path, "/progress/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "task id required")
		return
	}

	var evt progress.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed progress event")
		return
	}
	s.bus.Publish(taskID, evt)
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleTasks lists in-flight and recorded task ids for the CLI.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := tasksResponse{Running: []string{}, Completed: []string{}}
	if s.supervisor != nil {
		resp.Running = s.supervisor.Running()
	}
	if s.store != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		ids, err := s.store.List(r.Context(), limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if ids != nil {
			resp.Completed = ids
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
