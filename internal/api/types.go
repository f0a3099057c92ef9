package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a generation job in a transport-friendly format.
type Job struct {
	ID        string `json:"id"`
	ScriptID  string `json:"scriptId"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Terminal  bool   `json:"terminal"`
	VideoID   string `json:"videoId,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Error     string `json:"error,omitempty"`
	Warning   string `json:"warning,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Script summarizes a stored script.
type Script struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	SlideCount int    `json:"slideCount"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// WorkerStatus mirrors the pipeline worker diagnostics.
type WorkerStatus struct {
	Running   bool   `json:"running"`
	Workers   int    `json:"workers"`
	LastJob   string `json:"lastJob,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// Health aggregates daemon runtime information for API consumers.
type Health struct {
	Status      string         `json:"status"`
	Running     bool           `json:"running"`
	StartedAt   string         `json:"startedAt,omitempty"`
	NextJanitor string         `json:"nextJanitor,omitempty"`
	Worker      WorkerStatus   `json:"worker"`
	Jobs        map[string]int `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ScriptListResponse wraps a collection of scripts.
type ScriptListResponse struct {
	Scripts []Script `json:"scripts"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
