package janitor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"slidereel/internal/artifacts"
	"slidereel/internal/config"
	"slidereel/internal/janitor"
	"slidereel/internal/logging"
	"slidereel/internal/store"
	"slidereel/internal/testsupport"
)

type fixture struct {
	cfg   *config.Config
	store *store.Store
	arts  *artifacts.Store
	jan   *janitor.Janitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	arts, err := artifacts.New(cfg.Paths.VideosDir)
	if err != nil {
		t.Fatalf("artifacts.New: %v", err)
	}
	jan, err := janitor.New(cfg, st, arts, logging.NewNop())
	if err != nil {
		t.Fatalf("janitor.New: %v", err)
	}
	return &fixture{cfg: cfg, store: st, arts: arts, jan: jan}
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.arts.Root()}, parts...)...)
}

func (f *fixture) run(t *testing.T) janitor.Report {
	t.Helper()
	report, err := f.jan.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	return report
}

func (f *fixture) job(t *testing.T, id string) *store.Job {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", id, err)
	}
	return job
}

func sorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return out
}

func TestStaleProcessingJobTimesOut(t *testing.T) {
	f := newFixture(t)
	testsupport.MustCreateJob(t, f.store, "video_stale1", "s", store.StatusProcessing, time.Now().Add(-2*time.Hour))
	testsupport.MustCreateJob(t, f.store, "video_fresh1", "s", store.StatusProcessing, time.Now().Add(-10*time.Minute))

	report := f.run(t)
	if report.JobsTimedOut != 1 {
		t.Fatalf("expected 1 timed out job, got %d", report.JobsTimedOut)
	}
	stale := f.job(t, "video_stale1")
	if stale.Status != store.StatusFailed || stale.Error != "Job timed out" {
		t.Fatalf("unexpected stale job state %s %q", stale.Status, stale.Error)
	}
	if fresh := f.job(t, "video_fresh1"); fresh.Status != store.StatusProcessing {
		t.Fatalf("fresh job should stay processing, got %s", fresh.Status)
	}
}

func TestOrphanWorkingDirectoryRemoved(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteFile(t, f.path("video_abc123", "slides.py"), 10)
	testsupport.WriteFile(t, f.path("regen_XyZ789", "media", "Slide0Scene.mp4"), 10)

	report := f.run(t)
	if got, want := sorted(report.DirsRemoved), []string{"regen_XyZ789", "video_abc123"}; !slices.Equal(got, want) {
		t.Fatalf("DirsRemoved = %v, want %v", got, want)
	}
	if testsupport.Exists(f.path("video_abc123")) || testsupport.Exists(f.path("regen_XyZ789")) {
		t.Fatal("expected orphan directories to be removed")
	}
}

func TestActiveJobDirectoriesAreKept(t *testing.T) {
	f := newFixture(t)
	testsupport.MustCreateJob(t, f.store, "video_live01", "s", store.StatusProcessing, time.Now())
	testsupport.MustCreateJob(t, f.store, "regen_queue1", "s", store.StatusQueued, time.Now())
	testsupport.WriteFile(t, f.path("video_live01", "Slide0Scene.mp4"), 10)
	testsupport.WriteFile(t, f.path("regen_queue1", "slides.py"), 10)

	report := f.run(t)
	if len(report.DirsRemoved) != 0 {
		t.Fatalf("unexpected removals %v", report.DirsRemoved)
	}
	if got, want := sorted(report.DirsSkipped), []string{"regen_queue1", "video_live01"}; !slices.Equal(got, want) {
		t.Fatalf("DirsSkipped = %v, want %v", got, want)
	}
	if !testsupport.Exists(f.path("video_live01")) || !testsupport.Exists(f.path("regen_queue1")) {
		t.Fatal("active directories must survive")
	}
}

func TestTimedOutJobDirectoryReclaimedOnNextPass(t *testing.T) {
	f := newFixture(t)
	testsupport.MustCreateJob(t, f.store, "video_hung01", "s", store.StatusProcessing, time.Now().Add(-3*time.Hour))
	testsupport.WriteFile(t, f.path("video_hung01", "slides.py"), 10)

	first := f.run(t)
	if first.JobsTimedOut != 1 {
		t.Fatalf("expected the job to time out, got %d", first.JobsTimedOut)
	}
	if !testsupport.Exists(f.path("video_hung01")) {
		t.Fatal("directory should survive the pass that timed the job out")
	}

	second := f.run(t)
	if second.JobsReaped != 1 {
		t.Fatalf("expected 1 reaped job, got %d", second.JobsReaped)
	}
	if !slices.Equal(second.DirsRemoved, []string{"video_hung01"}) {
		t.Fatalf("DirsRemoved = %v", second.DirsRemoved)
	}
}

func TestStrayFilesRemovedAndMediaRetained(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteFile(t, f.path("video_abc123.mp4"), 10)
	testsupport.WriteFile(t, f.path("video_abc123.jpg"), 10)
	testsupport.WriteFile(t, f.path("notes.txt"), 10)
	testsupport.WriteFile(t, f.path("slide_0.mp3"), 10)
	testsupport.WriteFile(t, f.path("keepme", "inner.txt"), 10)

	report := f.run(t)
	if got, want := sorted(report.FilesRemoved), []string{"notes.txt", "slide_0.mp3"}; !slices.Equal(got, want) {
		t.Fatalf("FilesRemoved = %v, want %v", got, want)
	}
	for _, keep := range []string{"video_abc123.mp4", "video_abc123.jpg", filepath.Join("keepme", "inner.txt")} {
		if !testsupport.Exists(f.path(keep)) {
			t.Fatalf("expected %s to be kept", keep)
		}
	}
}

func TestOrphanPublishedVideosRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.WriteFile(t, f.path("video_have01.mp4"), 10)

	rows := []*store.Video{
		{ID: "present", Title: "P", VideoURL: "https://cdn.example.com/videos/video_have01.mp4?sig=1", IsGenerated: true},
		{ID: "orphan", Title: "O", VideoURL: "/videos/video_gone01.mp4", IsGenerated: true},
		{ID: "external", Title: "E", VideoURL: "https://youtube.example.com/watch/abc.mp4", IsGenerated: false},
	}
	for _, row := range rows {
		if err := f.store.InsertVideo(ctx, row); err != nil {
			t.Fatalf("InsertVideo(%s): %v", row.ID, err)
		}
	}

	report := f.run(t)
	if !slices.Equal(report.VideosRemoved, []string{"orphan"}) {
		t.Fatalf("VideosRemoved = %v", report.VideosRemoved)
	}
	if _, err := f.store.GetVideo(ctx, "orphan"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected orphan row gone, got %v", err)
	}
	for _, id := range []string{"present", "external"} {
		if _, err := f.store.GetVideo(ctx, id); err != nil {
			t.Fatalf("expected %s to be kept: %v", id, err)
		}
	}
}

func TestFailedAndCancelledJobsReaped(t *testing.T) {
	f := newFixture(t)
	testsupport.MustCreateJob(t, f.store, "video_fail01", "s", store.StatusFailed, time.Now())
	testsupport.MustCreateJob(t, f.store, "video_canc01", "s", store.StatusCancelled, time.Now())
	testsupport.MustCreateJob(t, f.store, "video_done01", "s", store.StatusCompleted, time.Now())

	report := f.run(t)
	if report.JobsReaped != 2 {
		t.Fatalf("expected 2 reaped jobs, got %d", report.JobsReaped)
	}
	remaining, err := f.store.ListJobs(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "video_done01" {
		t.Fatalf("unexpected remaining jobs %v", remaining)
	}
}

func TestSecondPassIsNoOp(t *testing.T) {
	f := newFixture(t)
	testsupport.MustCreateJob(t, f.store, "video_fail01", "s", store.StatusFailed, time.Now())
	testsupport.MustCreateJob(t, f.store, "video_live01", "s", store.StatusProcessing, time.Now())
	testsupport.WriteFile(t, f.path("video_abc123", "slides.py"), 10)
	testsupport.WriteFile(t, f.path("video_live01", "slides.py"), 10)
	testsupport.WriteFile(t, f.path("junk.log"), 10)
	if err := f.store.InsertVideo(context.Background(), &store.Video{ID: "orphan", VideoURL: "/videos/nope.mp4", IsGenerated: true}); err != nil {
		t.Fatalf("InsertVideo: %v", err)
	}

	if first := f.run(t); !first.Changed() {
		t.Fatal("expected the first pass to change state")
	}
	snapshot := listRoot(t, f)

	if second := f.run(t); second.Changed() {
		t.Fatalf("second pass changed state: %+v", second)
	}
	if got := listRoot(t, f); !slices.Equal(got, snapshot) {
		t.Fatalf("root changed between passes: %v -> %v", snapshot, got)
	}
}

func TestRunOnceBusyWhenLocked(t *testing.T) {
	f := newFixture(t)
	other := flock.New(filepath.Join(f.cfg.Paths.LogDir, janitor.LockFileName))
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()

	if _, err := f.jan.RunOnce(context.Background()); !errors.Is(err, janitor.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestScheduleRegistersCronEntry(t *testing.T) {
	f := newFixture(t)
	c := cron.New()
	id, err := f.jan.Schedule(context.Background(), c, "@every 15m")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !c.Entry(id).Valid() {
		t.Fatal("expected a valid cron entry")
	}
	if _, err := f.jan.Schedule(context.Background(), c, "not a schedule"); err == nil {
		t.Fatal("expected an invalid schedule to be rejected")
	}
}

func TestVideoBasename(t *testing.T) {
	cases := map[string]string{
		"/videos/video_a.mp4":                 "video_a.mp4",
		"https://x.example/v/video_b.mp4?t=1": "video_b.mp4",
		"video_c.mp4":                         "video_c.mp4",
	}
	for input, want := range cases {
		if got := janitor.VideoBasename(input); got != want {
			t.Fatalf("VideoBasename(%q) = %q, want %q", input, got, want)
		}
	}
}

func listRoot(t *testing.T, f *fixture) []string {
	t.Helper()
	entries, err := os.ReadDir(f.arts.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	slices.Sort(names)
	return names
}
