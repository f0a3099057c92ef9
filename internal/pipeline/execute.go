package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"slidereel/internal/artifacts"
	"slidereel/internal/logging"
	"slidereel/internal/render"
	"slidereel/internal/services"
	"slidereel/internal/store"
)

// PartialOutputName is the synchronizer target inside a working directory.
const PartialOutputName = "final.partial.mp4"

const thumbnailPartialName = "thumbnail.partial.jpg"

// errJobCancelled is the cancellation cause used when the job record flips to
// cancelled while a stage is running.
var errJobCancelled = services.Wrap(services.ErrCancelled, "", "", "job cancelled", nil)

// Result summarises a completed job.
type Result struct {
	FinalPath string
	Rendered  []int
	Dropped   []int
	Warning   string
	VideoID   string
}

func (o *Orchestrator) execute(ctx context.Context, job *store.Job, script *store.Script) (err error) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithScriptID(ctx, script.ID)
	logger := logging.WithContext(ctx, o.logger)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stopWatch := o.watch(runCtx, cancel, job.ID, logger)
	defer stopWatch()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic in job %s: %v", job.ID, recovered)
			logging.ErrorWithContext(logger, "job panicked", "job_panic",
				logging.String("stack", string(debug.Stack())),
				logging.Error(err),
			)
			o.fail(ctx, job.ID, err)
		}
	}()

	started := time.Now()
	logger.Info("job started", logging.Int("slides", len(script.Slides)))

	result, err := o.runStages(runCtx, job, script, logger)
	if err != nil {
		if errors.Is(context.Cause(runCtx), errJobCancelled) || errors.Is(err, services.ErrCancelled) {
			logger.Info("job cancelled; stopping without further transitions")
			return errJobCancelled
		}
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, "inspect the working directory before the janitor reclaims it"),
			logging.Error(err),
		)
		o.fail(ctx, job.ID, err)
		return err
	}

	logger.Info("job completed",
		logging.String("final", filepath.Base(result.FinalPath)),
		logging.Int("segments", len(result.Rendered)),
		logging.Duration("elapsed", time.Since(started)),
	)
	if !o.cfg.Jobs.KeepWorkDir {
		if err := o.artifacts.RemoveDir(job.ID); err != nil {
			logger.Warn("remove working directory failed; the janitor will reclaim it", logging.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) runStages(ctx context.Context, job *store.Job, script *store.Script, logger *slog.Logger) (*Result, error) {
	workDir := o.artifacts.WorkDir(job.ID)
	slides := script.Slides
	comps := o.components

	if err := o.checkpoint(ctx, job.ID); err != nil {
		return nil, err
	}
	generated, err := comps.Generator.Generate(slides, workDir)
	if err != nil {
		return nil, err
	}
	if len(generated.Scenes) != len(slides) {
		return nil, services.Wrap(services.ErrGeneration, "generate", "scenes",
			fmt.Sprintf("generated %d scenes for %d slides", len(generated.Scenes), len(slides)), nil)
	}

	if err := o.checkpoint(ctx, job.ID); err != nil {
		return nil, err
	}
	stageLogger := logger.With(logging.String(logging.FieldStage, "render"))
	clips, err := comps.Renderer.Render(ctx, generated.SourcePath, generated.Scenes, workDir)
	if err != nil {
		return nil, err
	}
	survivors, err := render.Survivors(clips, len(slides))
	if err != nil {
		return nil, fmt.Errorf("collect rendered clips: %w", err)
	}
	if len(survivors) == 0 {
		return nil, services.Wrap(services.ErrNoSlidesRendered, "render", "", fmt.Sprintf("0 of %d scenes rendered", len(slides)), nil)
	}

	result := &Result{}
	surviving := make([]store.Slide, len(survivors))
	clipPaths := make([]string, len(survivors))
	for k, clip := range survivors {
		surviving[k] = slides[clip.Index]
		clipPaths[k] = clip.Path
		result.Rendered = append(result.Rendered, clip.Index)
	}
	if len(survivors) < len(slides) {
		result.Dropped = render.Failed(clips)
		result.Warning = PartialRenderWarning(len(survivors), len(slides), result.Dropped)
		if err := o.store.SetWarning(ctx, job.ID, result.Warning); err != nil {
			stageLogger.Warn("failed to persist partial render warning", logging.Error(err))
		}
		logging.WarnWithContext(stageLogger, "partial render failure; continuing with surviving slides", "partial_render",
			logging.Int("rendered", len(survivors)),
			logging.Int("total", len(slides)),
			logging.String("dropped", formatIndices(result.Dropped)),
			logging.String(logging.FieldImpact, "the video omits the dropped slides"),
			logging.String(logging.FieldErrorHint, "check the scene bodies of the dropped slides"),
		)
	} else {
		stageLogger.Info("all scenes rendered", logging.Int("total", len(slides)))
	}

	if err := o.checkpoint(ctx, job.ID); err != nil {
		return nil, err
	}
	audio, err := comps.Narrator.Narrate(ctx, surviving, workDir)
	if err != nil {
		return nil, err
	}
	if len(audio) != len(surviving) {
		return nil, services.Wrap(services.ErrNarration, "narrate", "align",
			fmt.Sprintf("got %d audio files for %d slides", len(audio), len(surviving)), nil)
	}

	if err := o.checkpoint(ctx, job.ID); err != nil {
		return nil, err
	}
	partial := filepath.Join(workDir, PartialOutputName)
	if err := comps.Synchronizer.Synchronize(ctx, surviving, clipPaths, audio, partial); err != nil {
		return nil, err
	}

	if err := o.checkpoint(ctx, job.ID); err != nil {
		return nil, err
	}
	return o.finish(ctx, job, script, partial, result, logger)
}

// checkpoint stops the job when its context ended or its record was
// cancelled externally.
func (o *Orchestrator) checkpoint(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return err
	}
	current, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reload job: %w", err)
	}
	if current.Status == store.StatusCancelled {
		return errJobCancelled
	}
	if current.Status.IsTerminal() {
		return fmt.Errorf("job %s is already %s: %w", jobID, current.Status, store.ErrTerminal)
	}
	return nil
}

// finish promotes the output, publishes it and records completion.
func (o *Orchestrator) finish(ctx context.Context, job *store.Job, script *store.Script, partial string, result *Result, logger *slog.Logger) (*Result, error) {
	finalPath := o.artifacts.FinalPath(job.ID)
	if err := o.artifacts.Promote(partial, finalPath); err != nil {
		return nil, services.Wrap(services.ErrSynchronization, "promote", "", "", err)
	}
	result.FinalPath = finalPath
	promoted := []string{artifacts.FinalName(job.ID)}

	thumbnail := ""
	if o.cfg.Synchronizer.Thumbnail {
		if name, err := o.thumbnail(ctx, job.ID, finalPath); err != nil {
			logging.WarnWithContext(logger, "thumbnail extraction failed", "thumbnail_failed",
				logging.String(logging.FieldImpact, "published video has no thumbnail"),
				logging.Error(err),
			)
		} else {
			thumbnail = name
			promoted = append(promoted, name)
		}
	}

	writeCtx := context.WithoutCancel(ctx)
	sourceURL := o.publicURL(artifacts.FinalName(job.ID))
	var videoID string
	if o.cfg.Publish.Enabled {
		video, err := o.publish(writeCtx, script, sourceURL, thumbnail)
		if err != nil {
			o.discard(promoted)
			return nil, err
		}
		videoID = video.ID
		result.VideoID = videoID
	}

	if err := o.store.Complete(writeCtx, job.ID, sourceURL, videoID); err != nil {
		if videoID != "" {
			_ = o.store.DeleteVideo(writeCtx, videoID)
		}
		o.discard(promoted)
		if errors.Is(err, store.ErrTerminal) {
			if current, getErr := o.store.GetJob(writeCtx, job.ID); getErr == nil && current.Status == store.StatusCancelled {
				return nil, errJobCancelled
			}
		}
		return nil, fmt.Errorf("mark job completed: %w", err)
	}
	return result, nil
}

func (o *Orchestrator) thumbnail(ctx context.Context, jobID, finalPath string) (string, error) {
	partial := filepath.Join(o.artifacts.WorkDir(jobID), thumbnailPartialName)
	if err := o.components.Synchronizer.Thumbnail(ctx, finalPath, partial); err != nil {
		return "", err
	}
	if err := o.artifacts.Promote(partial, o.artifacts.ThumbnailPath(jobID)); err != nil {
		return "", err
	}
	return artifacts.ThumbnailName(jobID), nil
}

// discard removes promoted files of a job that could not be completed.
func (o *Orchestrator) discard(names []string) {
	for _, name := range names {
		if err := o.artifacts.RemoveFile(name); err != nil {
			o.logger.Warn("remove promoted artifact failed", logging.String("file", name), logging.Error(err))
		}
	}
}

// PartialRenderWarning formats the job warning for dropped slides.
func PartialRenderWarning(rendered, total int, dropped []int) string {
	return fmt.Sprintf("PartialRenderFailure: rendered %d of %d slides; dropped slides %s", rendered, total, formatIndices(dropped))
}

func formatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, index := range indices {
		parts[i] = fmt.Sprint(index)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
