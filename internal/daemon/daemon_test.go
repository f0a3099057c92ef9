package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"slidereel/internal/artifacts"
	"slidereel/internal/config"
	"slidereel/internal/daemon"
	"slidereel/internal/janitor"
	"slidereel/internal/logging"
	"slidereel/internal/pipeline"
	"slidereel/internal/store"
	"slidereel/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, st *store.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	orch, err := pipeline.NewFromConfig(cfg, st, logger)
	if err != nil {
		t.Fatalf("pipeline.NewFromConfig: %v", err)
	}
	arts, err := artifacts.New(cfg.Paths.VideosDir)
	if err != nil {
		t.Fatalf("artifacts.New: %v", err)
	}
	jan, err := janitor.New(cfg, st, arts, logger)
	if err != nil {
		t.Fatalf("janitor.New: %v", err)
	}
	d, err := daemon.New(cfg, st, orch, jan, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	st := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, st)
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Worker.Running {
		t.Fatal("expected worker to be running")
	}
	if status.APIAddress == "" {
		t.Fatal("expected api address")
	}
	if status.NextJanitor.IsZero() {
		t.Fatal("expected janitor to be scheduled")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	st := testsupport.MustOpenStore(t, cfg)

	first := newDaemon(t, cfg, st)
	t.Cleanup(first.Stop)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := newDaemon(t, cfg, st)
	if err := second.Start(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	first.Stop()
	t.Cleanup(second.Stop)
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestDaemonCancelRejectsTerminalJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, st)

	script := testsupport.MustInsertScript(t, st, "Cells", "Cells divide.")
	job := testsupport.MustCreateJob(t, st, "video_Done01", script.ID, store.StatusCompleted, time.Now())

	if err := d.Cancel(context.Background(), job.ID); !errors.Is(err, store.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}
