package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const videoColumns = "id, title, video_url, thumbnail, is_generated"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id          string
		title       sql.NullString
		videoURL    sql.NullString
		thumbnail   sql.NullString
		isGenerated sql.NullBool
	)
	if err := scanner.Scan(&id, &title, &videoURL, &thumbnail, &isGenerated); err != nil {
		return nil, err
	}
	return &Video{
		ID:          id,
		Title:       title.String,
		VideoURL:    videoURL.String,
		Thumbnail:   thumbnail.String,
		IsGenerated: isGenerated.Valid && isGenerated.Bool,
	}, nil
}

// InsertVideo stores a published video record, minting an id when missing.
func (s *Store) InsertVideo(ctx context.Context, video *Video) error {
	if video == nil {
		return errors.New("video is nil")
	}
	if strings.TrimSpace(video.VideoURL) == "" {
		return errors.New("video url is required")
	}
	if strings.TrimSpace(video.ID) == "" {
		video.ID = uuid.NewString()
	}
	_, err := s.exec(ctx,
		`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?)`,
		video.ID, video.Title, video.VideoURL, nullableString(video.Thumbnail), video.IsGenerated,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert video %s: %w", video.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// GetVideo loads a published video by id.
func (s *Store) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := s.queryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListGeneratedVideos returns every video produced by the pipeline.
func (s *Store) ListGeneratedVideos(ctx context.Context) ([]*Video, error) {
	rows, err := s.query(ctx, `SELECT `+videoColumns+` FROM videos WHERE is_generated = ? ORDER BY id`, true)
	if err != nil {
		return nil, fmt.Errorf("list generated videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// DeleteVideo removes a published video record. Deleting a missing record is not an error.
func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM videos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	return nil
}
