package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline error kinds. The kind name is persisted as the prefix of a failed
// job's error column.
var (
	ErrScriptNotFound   = errors.New("ScriptNotFound")
	ErrGeneration       = errors.New("GenerationError")
	ErrNoSlidesRendered = errors.New("NoSlidesRendered")
	ErrNarration        = errors.New("NarrationError")
	ErrSynchronization  = errors.New("SynchronizationError")
	ErrJobTimeout       = errors.New("JobTimeout")
	ErrCancelled        = errors.New("Cancelled")
)

// Generic markers shared by infrastructure code.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

var pipelineKinds = []error{
	ErrScriptNotFound,
	ErrGeneration,
	ErrNoSlidesRendered,
	ErrNarration,
	ErrSynchronization,
	ErrJobTimeout,
	ErrCancelled,
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the pipeline error kind carried by err, or "InternalError" when
// err does not wrap one of the pipeline markers.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range pipelineKinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "InternalError"
}

// FailureMessage renders err for the job record. Errors that already start with
// their kind are stored verbatim; anything else is prefixed.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	kind := Kind(err)
	if strings.HasPrefix(msg, kind) {
		return msg
	}
	return kind + ": " + msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
