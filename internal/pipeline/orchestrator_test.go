package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"slidereel/internal/artifacts"
	"slidereel/internal/janitor"
	"slidereel/internal/logging"
	"slidereel/internal/pipeline"
	"slidereel/internal/scenegen"
	"slidereel/internal/services"
	"slidereel/internal/store"
	"slidereel/internal/testsupport"
)

func TestRunHappyPath(t *testing.T) {
	h := newHarness(t)
	script := testsupport.MustInsertScript(t, h.store, "intro to vectors", "A", "B", "C")

	jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindVideo)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(jobID, "video_") {
		t.Fatalf("unexpected job id %q", jobID)
	}

	final := h.arts.FinalPath(jobID)
	got := testsupport.ReadText(t, final)
	want := "Slide0Scene.mp4|A\nSlide1Scene.mp4|B\nSlide2Scene.mp4|C\n"
	if got != want {
		t.Fatalf("final video segments = %q, want %q", got, want)
	}

	job := h.job(t, jobID)
	if job.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.Error)
	}
	if job.Warning != "" {
		t.Fatalf("unexpected warning %q", job.Warning)
	}
	if job.SourceURL != "/videos/"+artifacts.FinalName(jobID) {
		t.Fatalf("unexpected source url %q", job.SourceURL)
	}
	if testsupport.Exists(h.arts.WorkDir(jobID)) {
		t.Fatal("expected working directory to be removed after success")
	}

	video, err := h.store.GetVideo(context.Background(), job.VideoID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if !video.IsGenerated || video.Title != "Intro To Vectors" {
		t.Fatalf("unexpected published video %+v", video)
	}
	if video.Thumbnail != "/videos/"+artifacts.ThumbnailName(jobID) || !h.arts.Exists(artifacts.ThumbnailName(jobID)) {
		t.Fatalf("expected promoted thumbnail, got %q", video.Thumbnail)
	}
}

func TestRunPartialRenderFailure(t *testing.T) {
	h := newHarness(t, testsupport.WithKeepWorkDir())
	h.renderer.emit = map[int]bool{0: true, 2: true}
	script := testsupport.MustInsertScript(t, h.store, "Partial", "A", "B", "C", "D")

	jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindVideo)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := testsupport.ReadText(t, h.arts.FinalPath(jobID))
	if got != "Slide0Scene.mp4|A\nSlide2Scene.mp4|C\n" {
		t.Fatalf("unexpected segments %q", got)
	}
	if len(h.narrator.received) != 2 || h.narrator.received[0].Narration != "A" || h.narrator.received[1].Narration != "C" {
		t.Fatalf("narrator should only see surviving slides, got %+v", h.narrator.received)
	}

	job := h.job(t, jobID)
	if job.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if !strings.Contains(job.Warning, "PartialRenderFailure") || !strings.Contains(job.Warning, "[1, 3]") {
		t.Fatalf("unexpected warning %q", job.Warning)
	}

	stored, err := h.store.GetScript(context.Background(), script.ID)
	if err != nil || len(stored.Slides) != 4 {
		t.Fatalf("script record must stay untouched: %v, %d slides", err, len(stored.Slides))
	}
	if testsupport.Exists(h.arts.WorkDir(jobID) + "/" + pipeline.PartialOutputName) {
		t.Fatal("working directory must not keep a partial output after promotion")
	}
}

func TestRunNoSlidesRendered(t *testing.T) {
	h := newHarness(t)
	h.renderer.emit = map[int]bool{}
	script := testsupport.MustInsertScript(t, h.store, "Broken", "A", "B")

	jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindVideo)
	if !errors.Is(err, services.ErrNoSlidesRendered) {
		t.Fatalf("expected NoSlidesRendered, got %v", err)
	}
	job := h.job(t, jobID)
	if job.Status != store.StatusFailed || !strings.HasPrefix(job.Error, "NoSlidesRendered") {
		t.Fatalf("unexpected job state %s %q", job.Status, job.Error)
	}
	if h.arts.Exists(artifacts.FinalName(jobID)) {
		t.Fatal("no final video may be produced")
	}
	if !testsupport.Exists(h.arts.WorkDir(jobID)) {
		t.Fatal("working directory should be retained for the janitor")
	}
	if h.sync.calls != 0 {
		t.Fatal("synchronizer must not run")
	}
}

func TestRunScriptNotFound(t *testing.T) {
	h := newHarness(t)
	jobID, err := h.orch.Run(context.Background(), "missing", artifacts.KindRegen)
	if !errors.Is(err, services.ErrScriptNotFound) {
		t.Fatalf("expected ScriptNotFound, got %v", err)
	}
	if jobID != "" {
		t.Fatalf("no job should be created, got %q", jobID)
	}
}

func TestRunNarrationFailure(t *testing.T) {
	h := newHarness(t)
	h.narrator.err = services.Wrap(services.ErrNarration, "narrate", "slide 0", "tts down", nil)
	script := testsupport.MustInsertScript(t, h.store, "Quiet", "A")

	jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindRegen)
	if services.Kind(err) != "NarrationError" {
		t.Fatalf("expected NarrationError, got %v", err)
	}
	if !strings.HasPrefix(jobID, "regen_") {
		t.Fatalf("expected regen job id, got %q", jobID)
	}
	job := h.job(t, jobID)
	if job.Status != store.StatusFailed || !strings.HasPrefix(job.Error, "NarrationError") {
		t.Fatalf("unexpected job %s %q", job.Status, job.Error)
	}
}

func TestRunPanicFailsJob(t *testing.T) {
	h := newHarness(t)
	h.renderer.panic = true
	script := testsupport.MustInsertScript(t, h.store, "Panics", "A")

	jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindVideo)
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("expected panic error, got %v", err)
	}
	job := h.job(t, jobID)
	if job.Status != store.StatusFailed || !strings.HasPrefix(job.Error, "InternalError") {
		t.Fatalf("unexpected job %s %q", job.Status, job.Error)
	}
}

func TestRunStopsWhenJobCancelled(t *testing.T) {
	h := newHarness(t)
	script := testsupport.MustInsertScript(t, h.store, "Cancelled", "A", "B")

	h.narrator.before = func() {
		jobs, err := h.store.ListJobs(context.Background(), 0, store.StatusProcessing)
		if err != nil || len(jobs) != 1 {
			t.Errorf("expected one processing job, got %d (%v)", len(jobs), err)
			return
		}
		if err := h.store.Cancel(context.Background(), jobs[0].ID); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	}

	jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindVideo)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	job := h.job(t, jobID)
	if job.Status != store.StatusCancelled || job.Error != "" {
		t.Fatalf("cancelled job must not be rewritten, got %s %q", job.Status, job.Error)
	}
	if h.sync.calls != 0 {
		t.Fatal("synchronizer must not run after cancellation")
	}
	if h.arts.Exists(artifacts.FinalName(jobID)) {
		t.Fatal("cancelled job must not promote output")
	}
}

func TestRunWithoutPublishing(t *testing.T) {
	h := newHarness(t, testsupport.WithPublishDisabled())
	script := testsupport.MustInsertScript(t, h.store, "Private", "A")

	jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindVideo)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job := h.job(t, jobID); job.VideoID != "" {
		t.Fatalf("expected no published video, got %q", job.VideoID)
	}
	videos, err := h.store.ListGeneratedVideos(context.Background())
	if err != nil || len(videos) != 0 {
		t.Fatalf("expected no video rows, got %d (%v)", len(videos), err)
	}
}

func TestWorkerProcessesQueuedJobs(t *testing.T) {
	h := newHarness(t)
	script := testsupport.MustInsertScript(t, h.store, "Queued", "A", "B")

	job, err := h.orch.Submit(context.Background(), script.ID, artifacts.KindVideo)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != store.StatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if _, err := h.orch.Submit(context.Background(), "missing", artifacts.KindVideo); !errors.Is(err, services.ErrScriptNotFound) {
		t.Fatalf("expected ScriptNotFound on submit, got %v", err)
	}

	worker := pipeline.NewWorker(h.orch, h.store, nil)
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer worker.Stop()
	worker.Notify()

	deadline := time.Now().Add(10 * time.Second)
	for {
		current := h.job(t, job.ID)
		if current.Status == store.StatusCompleted {
			break
		}
		if current.Status.IsTerminal() {
			t.Fatalf("job ended %s: %s", current.Status, current.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s after deadline", current.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !h.arts.Exists(artifacts.FinalName(job.ID)) {
		t.Fatal("expected promoted video")
	}
	if status := worker.Status(); !status.Running || status.LastJob != job.ID {
		t.Fatalf("unexpected worker status %+v", status)
	}
}

func TestPublishedTitle(t *testing.T) {
	cases := map[string]string{
		"  the   chain rule ": "The Chain Rule",
		"Intro to GPU":       "Intro to GPU",
		"":                   "Untitled Script s1",
	}
	for in, want := range cases {
		if got := pipeline.PublishedTitle(&store.Script{ID: "s1", Title: in}); got != want {
			t.Fatalf("PublishedTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunConcurrentWithJanitor(t *testing.T) {
	h := newHarness(t)
	jan, err := janitor.New(h.cfg, h.store, h.arts, logging.NewNop())
	if err != nil {
		t.Fatalf("janitor.New: %v", err)
	}
	script := testsupport.MustInsertScript(t, h.store, "Racing", "A", "B")

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				done <- nil
				return
			default:
			}
			if _, err := jan.RunOnce(context.Background()); err != nil && !errors.Is(err, janitor.ErrBusy) {
				done <- err
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		jobID, err := h.orch.Run(context.Background(), script.ID, artifacts.KindVideo)
		if err != nil {
			close(stop)
			<-done
			t.Fatalf("run %d (%s): %v", i, jobID, err)
		}
		if job := h.job(t, jobID); job.Status != store.StatusCompleted {
			close(stop)
			<-done
			t.Fatalf("run %d: job %s is %s (%s)", i, jobID, job.Status, job.Error)
		}
	}
	close(stop)
	if err := <-done; err != nil {
		t.Fatalf("janitor: %v", err)
	}
}

func TestRunSkipsTokenWithExistingFinalVideo(t *testing.T) {
	h := newHarness(t)
	existing := h.arts.FinalPath("video_AAAAAA")
	testsupport.WriteText(t, existing, "published")

	minted := []string{"regen_AAAAAA", "regen_BBBBBB"}
	orch, err := pipeline.New(h.cfg, h.store, h.arts, pipeline.Components{
		Generator:    scenegen.New(h.cfg.Renderer.SourceName),
		Renderer:     h.renderer,
		Narrator:     h.narrator,
		Synchronizer: h.sync,
		MintID: func(kind string) (string, error) {
			id := minted[0]
			minted = minted[1:]
			return id, nil
		},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	script := testsupport.MustInsertScript(t, h.store, "Regen", "A")

	jobID, err := orch.Run(context.Background(), script.ID, artifacts.KindRegen)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jobID != "regen_BBBBBB" {
		t.Fatalf("job id = %q, want regen_BBBBBB", jobID)
	}
	if got := testsupport.ReadText(t, existing); got != "published" {
		t.Fatalf("existing video overwritten: %q", got)
	}
	if _, err := h.store.GetJob(context.Background(), "regen_AAAAAA"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("colliding id must not get a record, got %v", err)
	}
	if !h.arts.Exists(artifacts.FinalName(jobID)) {
		t.Fatal("expected the new job to publish under its own token")
	}
}
