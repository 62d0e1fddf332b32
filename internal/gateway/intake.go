package gateway

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"recap/internal/logging"
	"recap/internal/pipeline"
	"recap/internal/progress"
	"recap/internal/services"
	"recap/internal/task"
	"recap/internal/upload"
)

// prepareTask validates the filename, allocates a workspace, and ingests the
// media stream into it. Validation failures happen before any workspace
// exists; ingestion failures evict the task's event queue because nobody will
// ever stream it.
func (s *Server) prepareTask(src io.Reader, filename string) (pipeline.Task, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.cfg.AllowedExtension(ext) {
		return pipeline.Task{}, services.Wrap(services.ErrValidation, "upload", "check extension",
			"unsupported file type "+ext, nil)
	}

	taskID := task.NewID()
	ws, err := task.CreateWorkspace(s.cfg.Paths.DataDir, taskID)
	if err != nil {
		return pipeline.Task{}, err
	}

	logger := logging.WithTask(s.logger, taskID)
	logger.Info("upload accepted", logging.String("filename", filename))

	s.bus.Publish(taskID, progress.Event{
		Service:  "orchestrator",
		Step:     pipeline.UploadSpan.Name,
		Status:   progress.StatusStarted,
		Progress: pipeline.UploadSpan.Min,
	})

	destination := filepath.Join(ws.Raw, filepath.Base(filename))
	size, err := upload.Save(src, destination, s.cfg.Upload.MaxBytes, s.cfg.Upload.ChunkSizeBytes)
	if err != nil {
		s.bus.Close(taskID)
		logger.Error("upload ingestion failed", logging.Error(err))
		return pipeline.Task{}, err
	}
	logger.Info("upload stored",
		logging.String("path", destination),
		logging.Int64("bytes", size),
	)

	s.bus.Publish(taskID, progress.Event{
		Service:  "orchestrator",
		Step:     pipeline.UploadSpan.Name,
		Status:   progress.StatusCompleted,
		Progress: pipeline.UploadSpan.Max,
	})

	return pipeline.Task{
		ID:        taskID,
		Title:     task.DeriveTitle(filename),
		Workspace: ws,
		RawPath:   destination,
	}, nil
}

// launchAsync hands the task to the supervisor as a detached pipeline run.
func (s *Server) launchAsync(t pipeline.Task) {
	s.supervisor.Launch(t.ID, func(ctx context.Context) error {
		_, err := s.runner.Run(ctx, t)
		return err
	})
}

// IngestPath runs a local media file through the same intake as an HTTP
// upload, in detached mode. Used by the watch-directory ingestion. The
// source file is left in place.
func (s *Server) IngestPath(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		marker := services.ErrConfiguration
		if os.IsNotExist(err) {
			marker = services.ErrNotFound
		}
		return "", services.Wrap(marker, "upload", "open source", path, err)
	}
	defer f.Close()

	t, err := s.prepareTask(f, filepath.Base(path))
	if err != nil {
		return "", err
	}
	s.launchAsync(t)
	return t.ID, nil
}
