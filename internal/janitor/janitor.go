package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"slidereel/internal/artifacts"
	"slidereel/internal/config"
	"slidereel/internal/logging"
	"slidereel/internal/store"
)

// LockFileName is created in the log directory while a pass runs.
const LockFileName = "janitor.lock"

// ErrBusy is returned when another pass holds the lock.
var ErrBusy = errors.New("another janitor pass is running")

// CleanupError pairs a path or record with its cleanup error.
type CleanupError struct {
	Target string
	Err    error
}

// Report is the outcome of one pass.
type Report struct {
	JobsReaped    int64
	VideosRemoved []string
	DirsRemoved   []string
	DirsSkipped   []string
	FilesRemoved  []string
	JobsTimedOut  int64
	Errors        []CleanupError
	Duration      time.Duration
}

// Changed reports whether the pass modified anything.
func (r Report) Changed() bool {
	return r.JobsReaped > 0 || len(r.VideosRemoved) > 0 || len(r.DirsRemoved) > 0 ||
		len(r.FilesRemoved) > 0 || r.JobsTimedOut > 0
}

// Janitor runs reconciliation passes.
type Janitor struct {
	store      *store.Store
	artifacts  *artifacts.Store
	staleAfter time.Duration
	lock       *flock.Flock
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a janitor from configuration.
func New(cfg *config.Config, st *store.Store, arts *artifacts.Store, logger *slog.Logger) (*Janitor, error) {
	if cfg == nil || st == nil || arts == nil {
		return nil, errors.New("janitor requires config, store and artifact store")
	}
	return &Janitor{
		store:      st,
		artifacts:  arts,
		staleAfter: cfg.StaleAfter(),
		lock:       flock.New(filepath.Join(cfg.Paths.LogDir, LockFileName)),
		logger:     logging.NewComponentLogger(logger, "janitor"),
		now:        time.Now,
	}, nil
}

// SetClock overrides the time source used for the stale cutoff.
func (j *Janitor) SetClock(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// RunOnce executes a single pass. Errors on individual targets are collected
// in the report; the returned error covers lock and database failures.
func (j *Janitor) RunOnce(ctx context.Context) (Report, error) {
	ok, err := j.lock.TryLock()
	if err != nil {
		return Report{}, fmt.Errorf("acquire janitor lock: %w", err)
	}
	if !ok {
		return Report{}, ErrBusy
	}
	defer func() {
		if err := j.lock.Unlock(); err != nil {
			j.logger.Warn("failed to release janitor lock", logging.Error(err))
		}
	}()

	started := time.Now()
	var report Report

	if report.JobsReaped, err = j.store.DeleteJobsByStatus(ctx, store.StatusFailed, store.StatusCancelled); err != nil {
		return report, fmt.Errorf("reap jobs: %w", err)
	}
	if err := j.removeOrphanedVideos(ctx, &report); err != nil {
		return report, err
	}
	if err := j.sweepArtifacts(ctx, &report); err != nil {
		return report, err
	}
	cutoff := j.now().Add(-j.staleAfter)
	if report.JobsTimedOut, err = j.store.FailStaleProcessing(ctx, cutoff, store.JobTimedOutMessage); err != nil {
		return report, fmt.Errorf("time out stale jobs: %w", err)
	}

	report.Duration = time.Since(started)
	j.logReport(report)
	return report, nil
}

func (j *Janitor) removeOrphanedVideos(ctx context.Context, report *Report) error {
	videos, err := j.store.ListGeneratedVideos(ctx)
	if err != nil {
		return fmt.Errorf("list generated videos: %w", err)
	}
	for _, video := range videos {
		if j.artifacts.Exists(VideoBasename(video.VideoURL)) {
			continue
		}
		if err := j.store.DeleteVideo(ctx, video.ID); err != nil {
			report.Errors = append(report.Errors, CleanupError{Target: "video " + video.ID, Err: err})
			continue
		}
		report.VideosRemoved = append(report.VideosRemoved, video.ID)
	}
	return nil
}

func (j *Janitor) sweepArtifacts(ctx context.Context, report *Report) error {
	// List before reading the active set; a listed directory's record
	// already exists.
	entries, err := j.artifacts.Entries()
	if err != nil {
		return err
	}
	active, err := j.store.ActiveJobIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if !artifacts.IsWorkDirName(name) {
				continue
			}
			if _, owned := active[name]; owned {
				report.DirsSkipped = append(report.DirsSkipped, name)
				continue
			}
			if err := j.artifacts.RemoveDir(name); err != nil {
				report.Errors = append(report.Errors, CleanupError{Target: name, Err: err})
				continue
			}
			report.DirsRemoved = append(report.DirsRemoved, name)
			continue
		}
		if artifacts.IsRetainedFile(name) {
			continue
		}
		if err := j.artifacts.RemoveFile(name); err != nil {
			report.Errors = append(report.Errors, CleanupError{Target: name, Err: err})
			continue
		}
		report.FilesRemoved = append(report.FilesRemoved, name)
	}
	return nil
}

func (j *Janitor) logReport(report Report) {
	attrs := []logging.Attr{
		logging.Int64("jobs_reaped", report.JobsReaped),
		logging.Int("videos_removed", len(report.VideosRemoved)),
		logging.Int("dirs_removed", len(report.DirsRemoved)),
		logging.Int("dirs_skipped", len(report.DirsSkipped)),
		logging.Int("files_removed", len(report.FilesRemoved)),
		logging.Int64("jobs_timed_out", report.JobsTimedOut),
		logging.Duration("elapsed", report.Duration),
	}
	if report.Changed() {
		j.logger.Info("janitor pass complete", logging.Args(attrs...)...)
	} else {
		j.logger.Debug("janitor pass complete", logging.Args(attrs...)...)
	}
	for _, failure := range report.Errors {
		logging.WarnWithContext(j.logger, "janitor cleanup failed", "janitor_cleanup_failed",
			logging.String("target", failure.Target),
			logging.String(logging.FieldErrorHint, "check videos_dir permissions"),
			logging.String(logging.FieldImpact, "disk space or records not reclaimed"),
			logging.Error(failure.Err),
		)
	}
	if report.JobsTimedOut > 0 {
		logging.WarnWithContext(j.logger, "timed out stale processing jobs", "job_timeout",
			logging.Int64("count", report.JobsTimedOut),
			logging.String(logging.FieldImpact, "jobs marked failed with \""+store.JobTimedOutMessage+"\""),
			logging.String(logging.FieldErrorHint, "check for hung renderer or tts processes"),
		)
	}
}

// VideoBasename returns the file name a published video URL points at.
func VideoBasename(videoURL string) string {
	if parsed, err := url.Parse(videoURL); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}
	return path.Base(videoURL)
}
