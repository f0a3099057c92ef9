package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"slidereel/internal/config"
	"slidereel/internal/janitor"
	"slidereel/internal/logging"
	"slidereel/internal/pipeline"
	"slidereel/internal/preflight"
	"slidereel/internal/store"
)

// LockFileName is held in the log directory while the daemon runs.
const LockFileName = "slidereeld.lock"

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another slidereel daemon instance is already running")

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	orch    *pipeline.Orchestrator
	worker  *pipeline.Worker
	janitor *janitor.Janitor

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	scheduler *cron.Cron
	api       *apiServer
	cancel    context.CancelFunc
	startedAt time.Time
	running   atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	StartedAt    time.Time
	Worker       pipeline.WorkerStatus
	Jobs         map[store.JobStatus]int
	NextJanitor  time.Time
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon. jan may be nil when the janitor is disabled.
func New(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator, jan *janitor.Janitor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || orch == nil {
		return nil, errors.New("daemon requires config, store and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		orch:     orch,
		worker:   pipeline.NewWorker(orch, st, logger),
		janitor:  jan,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, then launches the worker, the janitor
// schedule and the job API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.reportPreflight(runCtx)

	if err := d.worker.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}

	var scheduler *cron.Cron
	if d.janitor != nil && d.cfg.Janitor.Enabled {
		scheduler = cron.New()
		if _, err := d.janitor.Schedule(runCtx, scheduler, d.cfg.Janitor.Schedule); err != nil {
			cancel()
			d.worker.Stop()
			_ = d.lock.Unlock()
			return err
		}
		scheduler.Start()
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		d.worker.Stop()
		_ = d.lock.Unlock()
		return err
	}
	if err := api.start(runCtx); err != nil {
		cancel()
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		d.worker.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.scheduler = scheduler
	d.api = api
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)

	pruned := logging.PruneOldLogs(d.logger, d.cfg.Paths.LogDir, "*.log", d.cfg.Logging.RetentionDays,
		filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName))
	d.logger.Info("slidereel daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", api.address()),
		logging.Bool("janitor", scheduler != nil),
		logging.Int("logs_pruned", pruned),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// jobs observe the cancelled context and are failed by the orchestrator.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.scheduler != nil {
		<-d.scheduler.Stop().Done()
		d.scheduler = nil
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.api = nil
	d.running.Store(false)
	d.logger.Info("slidereel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit queues a job for scriptID and wakes the worker.
func (d *Daemon) Submit(ctx context.Context, scriptID, kind string) (*store.Job, error) {
	job, err := d.orch.Submit(ctx, scriptID, kind)
	if err != nil {
		return nil, err
	}
	d.worker.Notify()
	d.logger.Info("job submitted", logging.Args(logging.JobAttrs(job.ID, scriptID)...)...)
	return job, nil
}

// Job loads a job record.
func (d *Daemon) Job(ctx context.Context, id string) (*store.Job, error) {
	return d.store.GetJob(ctx, id)
}

// Cancel marks a queued or processing job cancelled. A running job notices
// on its next watch tick.
func (d *Daemon) Cancel(ctx context.Context, id string) error {
	if err := d.store.Cancel(ctx, id); err != nil {
		return err
	}
	d.logger.Info("job cancelled", logging.String(logging.FieldJobID, id))
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	status := Status{
		Running:      d.running.Load(),
		StartedAt:    d.startedAt,
		Worker:       d.worker.Status(),
		LockFilePath: d.lockPath,
	}
	if d.api != nil {
		status.APIAddress = d.api.address()
	}
	if d.scheduler != nil {
		for _, entry := range d.scheduler.Entries() {
			if status.NextJanitor.IsZero() || entry.Next.Before(status.NextJanitor) {
				status.NextJanitor = entry.Next
			}
		}
	}
	d.mu.Unlock()

	if stats, err := d.store.JobStats(ctx); err == nil {
		status.Jobs = stats
	} else {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	return status
}

func (d *Daemon) reportPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg, d.store) {
		if result.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs needing this resource will fail"),
			logging.String(logging.FieldErrorHint, "run slidereel deps"),
		)
	}
}
