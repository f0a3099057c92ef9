package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"slidereel/internal/logging"
	"slidereel/internal/store"
)

const errorRetryInterval = 10 * time.Second

// Worker claims queued jobs and runs them through the orchestrator.
type Worker struct {
	orch         *Orchestrator
	store        *store.Store
	logger       *slog.Logger
	pollInterval time.Duration
	workers      int

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob string
	wake    chan struct{}
}

// NewWorker constructs a worker pool over orch.
func NewWorker(orch *Orchestrator, st *store.Store, logger *slog.Logger) *Worker {
	workers := orch.cfg.Jobs.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Worker{
		orch:         orch,
		store:        st,
		logger:       logging.NewComponentLogger(logger, "worker"),
		pollInterval: orch.cfg.PollInterval(),
		workers:      workers,
		wake:         make(chan struct{}, 1),
	}
}

// Start launches the worker goroutines.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(w.workers)
	w.mu.Unlock()

	for i := range w.workers {
		go w.loop(runCtx, w.logger.With(logging.Int("worker", i)))
	}
	w.logger.Info("worker started", logging.Int("workers", w.workers), logging.Duration("poll_interval", w.pollInterval))
	return nil
}

// Stop terminates processing and waits for in-flight jobs to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Notify wakes one idle worker ahead of its next poll.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// WorkerStatus is a snapshot of worker diagnostics.
type WorkerStatus struct {
	Running   bool
	Workers   int
	LastError string
	LastJob   string
}

// Status returns the latest worker information.
func (w *Worker) Status() WorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	status := WorkerStatus{Running: w.running, Workers: w.workers, LastJob: w.lastJob}
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}
	return status
}

func (w *Worker) loop(ctx context.Context, logger *slog.Logger) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.store.ClaimNextQueued(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			w.sleep(ctx, errorRetryInterval)
			continue
		}
		if job == nil {
			w.sleep(ctx, w.pollInterval)
			continue
		}

		w.setLastJob(job.ID)
		if err := w.orch.Process(ctx, job); err != nil {
			if errors.Is(err, errJobCancelled) {
				continue
			}
			w.setLastError(err)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.wake:
	case <-timer.C:
	}
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

func (w *Worker) setLastJob(id string) {
	w.mu.Lock()
	w.lastJob = id
	w.mu.Unlock()
}
