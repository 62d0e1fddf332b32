package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"recap/internal/config"
	"recap/internal/dispatch"
	"recap/internal/gateway"
	"recap/internal/logging"
	"recap/internal/pipeline"
	"recap/internal/progress"
	"recap/internal/record"
	"recap/internal/watcher"
)

// Daemon wires the orchestrator services into one lifecycle and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *record.Store

	bus        *progress.Bus
	supervisor *pipeline.Supervisor
	server     *gateway.Server
	watch      *watcher.Watcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	Address        string
	RunningTasks   []string
	PendingStreams int
	StoreDBPath    string
	LockFilePath   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *record.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	bus := progress.NewBus()
	client := dispatch.NewClient(logger)
	runner := pipeline.NewRunner(cfg, client, bus, store, logger)
	supervisor := pipeline.NewSupervisor(logger, bus)
	server := gateway.New(cfg, bus, runner, supervisor, store, logger)

	watch, err := watcher.New(cfg, func(path string) error {
		_, ingestErr := server.IngestPath(path)
		return ingestErr
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init watcher: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "recapd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		bus:        bus,
		supervisor: supervisor,
		server:     server,
		watch:      watch,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, binds the gateway, and begins watch-dir
// ingestion when configured.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another recap daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.server.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	if d.watch != nil {
		go func() {
			if err := d.watch.Start(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("watcher exited", logging.Error(err))
			}
		}()
	}

	d.running.Store(true)
	d.logger.Info("recap daemon started",
		logging.String("address", d.server.Addr()),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop shuts the gateway down, waits briefly for in-flight pipelines, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	if d.watch != nil {
		_ = d.watch.Stop()
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.supervisor.Wait(drainCtx); err != nil {
		d.logger.Warn("pipelines still running at shutdown",
			logging.Any("tasks", d.supervisor.Running()),
		)
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("recap daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Run starts the daemon and blocks until ctx ends, then shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Addr returns the gateway's bound address once started.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running.Load(),
		Address:        d.server.Addr(),
		RunningTasks:   d.supervisor.Running(),
		PendingStreams: d.bus.Pending(),
		StoreDBPath:    d.store.Path(),
		LockFilePath:   d.lockPath,
	}
}
