package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, status, video_id, source_url, created_at, error, script_id, updated_at, warning"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id         string
		status     string
		videoID    sql.NullString
		sourceURL  sql.NullString
		createdRaw sql.NullString
		errorMsg   sql.NullString
		scriptID   sql.NullString
		updatedRaw sql.NullString
		warning    sql.NullString
	)
	if err := scanner.Scan(&id, &status, &videoID, &sourceURL, &createdRaw, &errorMsg, &scriptID, &updatedRaw, &warning); err != nil {
		return nil, err
	}
	job := &Job{
		ID:        id,
		Status:    JobStatus(status),
		VideoID:   videoID.String,
		SourceURL: sourceURL.String,
		Error:     errorMsg.String,
		ScriptID:  scriptID.String,
		Warning:   warning.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

// CreateJob inserts a job record. Only queued or processing are valid initial statuses.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is required")
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("create job %s: invalid initial status %q", job.ID, job.Status)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	_, err := s.exec(ctx,
		`INSERT INTO video_generation_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Status),
		nullableString(job.VideoID),
		nullableString(job.SourceURL),
		formatTime(job.CreatedAt),
		nullableString(job.Error),
		job.ScriptID,
		formatTime(job.UpdatedAt),
		nullableString(job.Warning),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create job %s: %w", job.ID, ErrDuplicate)
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJob loads a job by id. Missing jobs return ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.queryRow(ctx, `SELECT `+jobColumns+` FROM video_generation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status. A limit
// of zero returns every match.
func (s *Store) ListJobs(ctx context.Context, limit int, statuses ...JobStatus) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM video_generation_jobs`
	args := statusArgs(statuses)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ActiveJobIDs returns the ids of queued and processing jobs.
func (s *Store) ActiveJobIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.query(ctx,
		`SELECT id FROM video_generation_jobs WHERE status IN (`+makePlaceholders(len(activeStatuses))+`)`,
		statusArgs(activeStatuses)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(1) FROM video_generation_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[JobStatus(status)] = count
	}
	return stats, rows.Err()
}

const claimAttempts = 5

// ClaimNextQueued moves the oldest queued job to processing and returns it.
// It returns nil when the queue is empty.
func (s *Store) ClaimNextQueued(ctx context.Context) (*Job, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var id string
		err := s.queryRow(ctx,
			`SELECT id FROM video_generation_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			string(StatusQueued),
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select queued job: %w", err)
		}

		res, err := s.exec(ctx,
			`UPDATE video_generation_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(StatusProcessing), nowString(), id, string(StatusQueued),
		)
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", id, err)
		}
		if affected, _ := res.RowsAffected(); affected == 1 {
			return s.GetJob(ctx, id)
		}
		// Another worker claimed or cancelled it first.
	}
	return nil, nil
}

// Touch bumps updated_at on an active job so operators can tell it is alive.
func (s *Store) Touch(ctx context.Context, id string) error {
	res, err := s.exec(ctx,
		`UPDATE video_generation_jobs SET updated_at = ? WHERE id = ? AND status IN (`+makePlaceholders(len(activeStatuses))+`)`,
		append([]any{nowString(), id}, statusArgs(activeStatuses)...)...,
	)
	if err != nil {
		return fmt.Errorf("touch job: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("touch job %s: %w", id, ErrTerminal)
	}
	return nil
}

// SetWarning records a non-fatal warning on an active job.
func (s *Store) SetWarning(ctx context.Context, id, warning string) error {
	if _, err := s.exec(ctx,
		`UPDATE video_generation_jobs SET warning = ?, updated_at = ? WHERE id = ?`,
		nullableString(warning), nowString(), id,
	); err != nil {
		return fmt.Errorf("set warning: %w", err)
	}
	return nil
}

// Complete transitions a processing job to completed and records its output.
func (s *Store) Complete(ctx context.Context, id, sourceURL, videoID string) error {
	return s.transition(ctx, id, StatusCompleted, []JobStatus{StatusProcessing},
		"source_url = ?, video_id = ?, error = NULL",
		nullableString(sourceURL), nullableString(videoID),
	)
}

// Fail transitions a queued or processing job to failed with message.
func (s *Store) Fail(ctx context.Context, id, message string) error {
	return s.transition(ctx, id, StatusFailed, activeStatuses, "error = ?", nullableString(message))
}

// Cancel transitions a queued or processing job to cancelled.
func (s *Store) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusCancelled, activeStatuses, "")
}

func (s *Store) transition(ctx context.Context, id string, to JobStatus, from []JobStatus, set string, setArgs ...any) error {
	assignments := "status = ?, updated_at = ?"
	if set != "" {
		assignments += ", " + set
	}
	args := make([]any, 0, len(setArgs)+len(from)+3)
	args = append(args, string(to), nowString())
	args = append(args, setArgs...)
	args = append(args, id)
	args = append(args, statusArgs(from)...)

	res, err := s.exec(ctx,
		`UPDATE video_generation_jobs SET `+assignments+` WHERE id = ? AND status IN (`+makePlaceholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition job %s to %s: %w", id, to, err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}

	current, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", id, current.Status, ErrTerminal)
	}
	return fmt.Errorf("job %s cannot move from %s to %s", id, current.Status, to)
}

// DeleteJob removes one job record regardless of status. Deleting a missing
// record is not an error.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM video_generation_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// DeleteJobsByStatus removes job records in any of the given statuses.
func (s *Store) DeleteJobsByStatus(ctx context.Context, statuses ...JobStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	res, err := s.exec(ctx,
		`DELETE FROM video_generation_jobs WHERE status IN (`+makePlaceholders(len(statuses))+`)`,
		statusArgs(statuses)...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailStaleProcessing fails processing jobs created before cutoff.
func (s *Store) FailStaleProcessing(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE video_generation_jobs SET status = ?, error = ?, updated_at = ? WHERE status = ? AND created_at < ?`,
		string(StatusFailed), message, nowString(), string(StatusProcessing), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return res.RowsAffected()
}
