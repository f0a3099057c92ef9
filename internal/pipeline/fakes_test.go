package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"slidereel/internal/artifacts"
	"slidereel/internal/config"
	"slidereel/internal/logging"
	"slidereel/internal/pipeline"
	"slidereel/internal/render"
	"slidereel/internal/scenegen"
	"slidereel/internal/store"
	"slidereel/internal/testsupport"
)

// fakeRenderer writes <work>/Slide<i>Scene.mp4 for every index in emit. A nil
// emit renders every scene.
type fakeRenderer struct {
	emit  map[int]bool
	panic bool
}

func (r *fakeRenderer) Render(ctx context.Context, source string, scenes []string, workDir string) ([]render.Clip, error) {
	if r.panic {
		panic("renderer exploded")
	}
	clips := make([]render.Clip, len(scenes))
	for i, scene := range scenes {
		clips[i] = render.Clip{Index: i, Scene: scene}
		if r.emit != nil && !r.emit[i] {
			clips[i].Err = fmt.Errorf("scene %s failed", scene)
			continue
		}
		path := filepath.Join(workDir, scene+".mp4")
		if err := os.WriteFile(path, []byte(scene), 0o644); err != nil {
			return nil, err
		}
		clips[i].Path = path
		clips[i].OK = true
	}
	return clips, nil
}

// fakeNarrator writes the narration text as the audio payload.
type fakeNarrator struct {
	mu       sync.Mutex
	received []store.Slide
	err      error
	before   func()
}

func (n *fakeNarrator) Narrate(ctx context.Context, slides []store.Slide, workDir string) ([]string, error) {
	n.mu.Lock()
	n.received = append([]store.Slide(nil), slides...)
	n.mu.Unlock()
	if n.before != nil {
		n.before()
	}
	if n.err != nil {
		return nil, n.err
	}
	paths := make([]string, len(slides))
	for k, slide := range slides {
		paths[k] = filepath.Join(workDir, fmt.Sprintf("slide_%d.mp3", k))
		if err := os.WriteFile(paths[k], []byte(slide.Narration), 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// fakeSynchronizer writes one "<clip>|<narration>" line per segment.
type fakeSynchronizer struct {
	t     *testing.T
	calls int
}

func (s *fakeSynchronizer) Synchronize(ctx context.Context, slides []store.Slide, clips, audio []string, output string) error {
	s.calls++
	if len(slides) == 0 || len(slides) != len(clips) || len(clips) != len(audio) {
		s.t.Errorf("misaligned synchronizer inputs: %d/%d/%d", len(slides), len(clips), len(audio))
	}
	var b strings.Builder
	for i := range clips {
		narration, err := os.ReadFile(audio[i])
		if err != nil {
			return err
		}
		if string(narration) != slides[i].Narration {
			s.t.Errorf("segment %d pairs audio %q with slide %q", i, narration, slides[i].Narration)
		}
		fmt.Fprintf(&b, "%s|%s\n", filepath.Base(clips[i]), narration)
	}
	return os.WriteFile(output, []byte(b.String()), 0o644)
}

func (s *fakeSynchronizer) Thumbnail(ctx context.Context, video, output string) error {
	return os.WriteFile(output, []byte("jpg"), 0o644)
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	arts     *artifacts.Store
	orch     *pipeline.Orchestrator
	renderer *fakeRenderer
	narrator *fakeNarrator
	sync     *fakeSynchronizer
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	arts, err := artifacts.New(cfg.Paths.VideosDir)
	if err != nil {
		t.Fatalf("artifacts.New: %v", err)
	}
	h := &harness{
		cfg:      cfg,
		store:    st,
		arts:     arts,
		renderer: &fakeRenderer{},
		narrator: &fakeNarrator{},
		sync:     &fakeSynchronizer{t: t},
	}
	h.orch, err = pipeline.New(cfg, st, arts, pipeline.Components{
		Generator:    scenegen.New(cfg.Renderer.SourceName),
		Renderer:     h.renderer,
		Narrator:     h.narrator,
		Synchronizer: h.sync,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return h
}

func (h *harness) job(t *testing.T, id string) *store.Job {
	t.Helper()
	job, err := h.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", id, err)
	}
	return job
}
