package api

import (
	"time"

	"slidereel/internal/artifacts"
	"slidereel/internal/store"
)

// FromJob converts a job record to its API representation.
func FromJob(job *store.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:        job.ID,
		ScriptID:  job.ScriptID,
		Kind:      artifacts.KindOf(job.ID),
		Status:    string(job.Status),
		Terminal:  job.Status.IsTerminal(),
		VideoID:   job.VideoID,
		SourceURL: job.SourceURL,
		Error:     job.Error,
		Warning:   job.Warning,
		CreatedAt: formatTime(job.CreatedAt),
		UpdatedAt: formatTime(job.UpdatedAt),
	}
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*store.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromScript converts a script record to its summary representation.
func FromScript(script *store.Script) Script {
	if script == nil {
		return Script{}
	}
	return Script{
		ID:         script.ID,
		Title:      script.Title,
		Status:     script.Status,
		SlideCount: len(script.Slides),
		CreatedAt:  formatTime(script.CreatedAt),
	}
}

// FromScripts converts a slice of scripts into API DTOs.
func FromScripts(scripts []*store.Script) []Script {
	if len(scripts) == 0 {
		return nil
	}
	out := make([]Script, 0, len(scripts))
	for _, script := range scripts {
		out = append(out, FromScript(script))
	}
	return out
}

// MergeJobStats normalizes status counts so every status is present.
func MergeJobStats(stats map[store.JobStatus]int) map[string]int {
	out := map[string]int{
		string(store.StatusQueued):     0,
		string(store.StatusProcessing): 0,
		string(store.StatusCompleted):  0,
		string(store.StatusFailed):     0,
		string(store.StatusCancelled):  0,
	}
	for status, count := range stats {
		out[string(status)] += count
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
