package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"slidereel/internal/store"
)

// publish inserts the published video row for a completed job.
func (o *Orchestrator) publish(ctx context.Context, script *store.Script, videoURL, thumbnail string) (*store.Video, error) {
	video := &store.Video{
		ID:          uuid.NewString(),
		Title:       PublishedTitle(script),
		VideoURL:    videoURL,
		IsGenerated: true,
	}
	if thumbnail != "" {
		video.Thumbnail = o.publicURL(thumbnail)
	}
	if err := o.store.InsertVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("publish video: %w", err)
	}
	return video, nil
}

func (o *Orchestrator) publicURL(name string) string {
	return strings.TrimRight(o.cfg.Publish.BaseURL, "/") + "/" + name
}

// PublishedTitle collapses whitespace in the script title and title-cases
// titles written entirely in lower case.
func PublishedTitle(script *store.Script) string {
	title := strings.Join(strings.Fields(script.Title), " ")
	if title == "" {
		return "Untitled Script " + script.ID
	}
	if title == strings.ToLower(title) {
		return cases.Title(language.English).String(title)
	}
	return title
}
