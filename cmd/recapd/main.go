// Command recapd runs the meeting summarization orchestrator daemon: the
// HTTP gateway, the pipeline supervisor, and optional watch-directory
// ingestion.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"recap/internal/config"
	"recap/internal/daemon"
	"recap/internal/logging"
	"recap/internal/record"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, exists, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if exists {
		logger.Info("loaded config", logging.String("path", path))
	} else {
		logger.Info("no config file found, using defaults", logging.String("path", path))
	}

	store, err := record.Open(cfg)
	if err != nil {
		logger.Error("open completion store", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon run", logging.Error(err))
		return
	}
	logger.Info("recapd shut down")
}
