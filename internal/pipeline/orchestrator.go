package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"slidereel/internal/artifacts"
	"slidereel/internal/config"
	"slidereel/internal/logging"
	"slidereel/internal/media/ffprobe"
	"slidereel/internal/narration"
	"slidereel/internal/render"
	"slidereel/internal/scenegen"
	"slidereel/internal/services"
	"slidereel/internal/stitch"
	"slidereel/internal/store"
)

// Generator writes the animation source for a slide list.
type Generator interface {
	Generate(slides []store.Slide, workDir string) (scenegen.Output, error)
}

// Components are the stage implementations used by the orchestrator.
type Components struct {
	Generator    Generator
	Renderer     render.Renderer
	Narrator     narration.Narrator
	Synchronizer stitch.Synchronizer
	// MintID overrides job id minting. Defaults to artifacts.NewJobID.
	MintID func(kind string) (string, error)
}

// Orchestrator ties the stages together under a job id.
type Orchestrator struct {
	cfg        *config.Config
	store      *store.Store
	artifacts  *artifacts.Store
	components Components
	logger     *slog.Logger
	// watchInterval is how often a running job re-reads its record.
	watchInterval time.Duration
}

// New constructs an orchestrator from explicit components.
func New(cfg *config.Config, st *store.Store, arts *artifacts.Store, components Components, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil || st == nil || arts == nil {
		return nil, errors.New("orchestrator requires config, store and artifact store")
	}
	if components.Generator == nil || components.Renderer == nil || components.Narrator == nil || components.Synchronizer == nil {
		return nil, errors.New("orchestrator requires every stage component")
	}
	if components.MintID == nil {
		components.MintID = artifacts.NewJobID
	}
	return &Orchestrator{
		cfg:           cfg,
		store:         st,
		artifacts:     arts,
		components:    components,
		logger:        logging.NewComponentLogger(logger, "orchestrator"),
		watchInterval: cfg.PollInterval(),
	}, nil
}

// NewFromConfig wires the external-tool implementations of every stage.
func NewFromConfig(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Orchestrator, error) {
	arts, err := artifacts.New(cfg.Paths.VideosDir)
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(cfg.Renderer.Binary, cfg.Renderer.Quality, cfg.SceneTimeout(), cfg.Renderer.Concurrency,
		render.WithLogger(logging.NewComponentLogger(logger, "renderer")))
	if err != nil {
		return nil, err
	}
	narratorOpts := narration.OptionsFromConfig(cfg)
	narratorOpts.Logger = logging.NewComponentLogger(logger, "narrator")
	narrator, err := narration.New(narratorOpts)
	if err != nil {
		return nil, err
	}
	synchronizer, err := stitch.New(stitch.Options{
		FFmpegBinary: cfg.Synchronizer.FFmpegBinary,
		Timeout:      cfg.SynchronizerTimeout(),
		Prober:       ffprobe.NewClient(cfg.Synchronizer.FFprobeBinary, nil),
		Logger:       logging.NewComponentLogger(logger, "synchronizer"),
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, st, arts, Components{
		Generator:    scenegen.New(cfg.Renderer.SourceName),
		Renderer:     renderer,
		Narrator:     narrator,
		Synchronizer: synchronizer,
	}, logger)
}

// Artifacts exposes the artifact store the orchestrator writes to.
func (o *Orchestrator) Artifacts() *artifacts.Store { return o.artifacts }

// Run executes a new job of kind for scriptID and blocks until it reaches a
// terminal state. The job id is returned whenever a job record was created.
func (o *Orchestrator) Run(ctx context.Context, scriptID, kind string) (string, error) {
	script, err := o.loadScript(ctx, scriptID)
	if err != nil {
		return "", err
	}
	job, err := o.createJob(ctx, scriptID, kind, store.StatusProcessing)
	if err != nil {
		return "", err
	}
	return job.ID, o.execute(ctx, job, script)
}

// Submit records a queued job for scriptID without running it.
func (o *Orchestrator) Submit(ctx context.Context, scriptID, kind string) (*store.Job, error) {
	if _, err := o.loadScript(ctx, scriptID); err != nil {
		return nil, err
	}
	return o.createJob(ctx, scriptID, kind, store.StatusQueued)
}

// Process runs a job that has already been moved to processing.
func (o *Orchestrator) Process(ctx context.Context, job *store.Job) error {
	if job == nil {
		return errors.New("process: nil job")
	}
	script, err := o.loadScript(ctx, job.ScriptID)
	if err != nil {
		o.fail(ctx, job.ID, err)
		return err
	}
	if _, err := os.Stat(o.artifacts.WorkDir(job.ID)); err != nil {
		if _, err := o.artifacts.CreateWorkDir(job.ID); err != nil {
			wrapped := fmt.Errorf("prepare working directory: %w", err)
			o.fail(ctx, job.ID, wrapped)
			return wrapped
		}
	}
	return o.execute(ctx, job, script)
}

func (o *Orchestrator) loadScript(ctx context.Context, scriptID string) (*store.Script, error) {
	script, err := o.store.GetScript(ctx, scriptID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, services.Wrap(services.ErrScriptNotFound, "load", "script", scriptID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", scriptID, err)
	}
	return script, nil
}

const mintAttempts = 3

// createJob mints a job id and persists the record. A processing job's
// working directory is created only after its record exists. Queued jobs get
// their directory when a worker claims them.
func (o *Orchestrator) createJob(ctx context.Context, scriptID, kind string, status store.JobStatus) (*store.Job, error) {
	var lastErr error
	for range mintAttempts {
		id, err := o.components.MintID(kind)
		if err != nil {
			return nil, err
		}
		if o.artifacts.Exists(artifacts.FinalName(id)) {
			lastErr = fmt.Errorf("final video %s already exists", artifacts.FinalName(id))
			continue
		}
		job := &store.Job{ID: id, ScriptID: scriptID, Status: status}
		if err := o.store.CreateJob(ctx, job); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if status == store.StatusProcessing {
			if _, err := o.artifacts.CreateWorkDir(id); err != nil {
				if delErr := o.store.DeleteJob(context.WithoutCancel(ctx), id); delErr != nil {
					o.logger.Warn("failed to remove job record after working directory error",
						logging.String(logging.FieldJobID, id),
						logging.Error(delErr),
					)
				}
				return nil, fmt.Errorf("prepare working directory: %w", err)
			}
		}
		attrs := append(logging.JobAttrs(id, scriptID), logging.String("status", string(status)))
		o.logger.Info("job created", logging.Args(attrs...)...)
		return job, nil
	}
	return nil, fmt.Errorf("mint job id: %w", lastErr)
}

// fail writes the terminal failed state. A job that was cancelled or already
// finished is left alone.
func (o *Orchestrator) fail(ctx context.Context, jobID string, cause error) {
	writeCtx := context.WithoutCancel(ctx)
	message := services.FailureMessage(cause)
	if err := o.store.Fail(writeCtx, jobID, message); err != nil {
		if errors.Is(err, store.ErrTerminal) {
			return
		}
		logging.ErrorWithContext(o.logger, "failed to persist job failure", "job_fail_persist_failed",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldErrorHint, "check database connectivity; the janitor will time the job out"),
			logging.Error(err),
		)
	}
}
