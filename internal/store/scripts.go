package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const scriptColumns = "id, title, status, slides, created_at"

func scanScript(scanner interface{ Scan(dest ...any) error }) (*Script, error) {
	var (
		id         string
		title      sql.NullString
		status     sql.NullString
		slidesRaw  sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &title, &status, &slidesRaw, &createdRaw); err != nil {
		return nil, err
	}
	script := &Script{
		ID:     id,
		Title:  title.String,
		Status: status.String,
	}
	if raw := strings.TrimSpace(slidesRaw.String); raw != "" {
		if err := json.Unmarshal([]byte(raw), &script.Slides); err != nil {
			return nil, fmt.Errorf("decode slides for script %s: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		script.CreatedAt = created
	}
	return script, nil
}

// InsertScript stores a new script. A missing ID is minted, a missing status
// defaults to ready.
func (s *Store) InsertScript(ctx context.Context, script *Script) error {
	if script == nil {
		return errors.New("script is nil")
	}
	if strings.TrimSpace(script.ID) == "" {
		script.ID = uuid.NewString()
	}
	if strings.TrimSpace(script.Status) == "" {
		script.Status = ScriptStatusReady
	}
	if script.CreatedAt.IsZero() {
		script.CreatedAt = time.Now().UTC()
	}
	slides := script.Slides
	if slides == nil {
		slides = []Slide{}
	}
	encoded, err := json.Marshal(slides)
	if err != nil {
		return fmt.Errorf("encode slides: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO video_scripts (`+scriptColumns+`) VALUES (?, ?, ?, ?, ?)`,
		script.ID, script.Title, script.Status, string(encoded), formatTime(script.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert script %s: %w", script.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert script: %w", err)
	}
	return nil
}

// GetScript loads a script by id. Missing scripts return ErrNotFound.
func (s *Store) GetScript(ctx context.Context, id string) (*Script, error) {
	row := s.queryRow(ctx, `SELECT `+scriptColumns+` FROM video_scripts WHERE id = ?`, id)
	script, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("script %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	return script, nil
}

// ListRecentScripts returns up to limit scripts, newest first.
func (s *Store) ListRecentScripts(ctx context.Context, limit int) ([]*Script, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.query(ctx, `SELECT `+scriptColumns+` FROM video_scripts ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()

	var scripts []*Script
	for rows.Next() {
		script, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}
	return scripts, rows.Err()
}
