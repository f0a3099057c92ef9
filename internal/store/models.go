package store

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle of a generation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// JobTimedOutMessage is the error recorded when a processing job exceeds its ceiling.
const JobTimedOutMessage = "Job timed out"

// ScriptStatusReady is assigned to imported scripts that carry no status.
const ScriptStatusReady = "ready"

var allJobStatuses = []JobStatus{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// activeStatuses are the only statuses a transition may leave.
var activeStatuses = []JobStatus{StatusQueued, StatusProcessing}

// IsTerminal reports whether no further transition is accepted from s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseJobStatus validates a user supplied status name.
func ParseJobStatus(value string) (JobStatus, bool) {
	for _, status := range allJobStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// Slide is one positional unit of a script. Visual is passed through to the
// code generator untouched.
type Slide struct {
	Narration string          `json:"narration"`
	Visual    json.RawMessage `json:"visual,omitempty"`
}

// Script is a stored video script. Slides are addressed by index and the
// slide count never changes after import.
type Script struct {
	ID        string
	Title     string
	Status    string
	Slides    []Slide
	CreatedAt time.Time
}

// Job is one invocation of the synthesis pipeline for one script. The ID is
// also the name of the job's working directory.
type Job struct {
	ID        string
	ScriptID  string
	Status    JobStatus
	VideoID   string
	SourceURL string
	Error     string
	Warning   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Video is a published video record.
type Video struct {
	ID          string
	Title       string
	VideoURL    string
	Thumbnail   string
	IsGenerated bool
}
