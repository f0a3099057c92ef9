package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"slidereel/internal/config"
	"slidereel/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustInsertScript stores a script with one slide per narration. Each slide
// gets a small title-card visual.
func MustInsertScript(t testing.TB, st *store.Store, title string, narrations ...string) *store.Script {
	t.Helper()

	slides := make([]store.Slide, 0, len(narrations))
	for i, narration := range narrations {
		visual, _ := json.Marshal(map[string]any{"title": fmt.Sprintf("Slide %d", i+1)})
		slides = append(slides, store.Slide{Narration: narration, Visual: visual})
	}
	script := &store.Script{Title: title, Slides: slides}
	if err := st.InsertScript(context.Background(), script); err != nil {
		t.Fatalf("store.InsertScript: %v", err)
	}
	return script
}

// MustCreateJob inserts a job with an explicit status and creation time.
// Terminal statuses are reached through the regular transitions.
func MustCreateJob(t testing.TB, st *store.Store, id, scriptID string, status store.JobStatus, createdAt time.Time) *store.Job {
	t.Helper()
	ctx := context.Background()

	initial := status
	if status.IsTerminal() {
		initial = store.StatusProcessing
	}
	job := &store.Job{ID: id, ScriptID: scriptID, Status: initial, CreatedAt: createdAt}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	var err error
	switch status {
	case store.StatusCompleted:
		err = st.Complete(ctx, id, "/videos/"+id+".mp4", "")
	case store.StatusFailed:
		err = st.Fail(ctx, id, "GenerationError: test")
	case store.StatusCancelled:
		err = st.Cancel(ctx, id)
	}
	if err != nil {
		t.Fatalf("transition %s to %s: %v", id, status, err)
	}
	fetched, err := st.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("store.GetJob: %v", err)
	}
	return fetched
}
