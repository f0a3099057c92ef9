package api

import (
	"context"

	"slidereel/internal/store"
)

// JobReader abstracts the persistence reads needed for API queries.
type JobReader interface {
	ListJobs(ctx context.Context, limit int, statuses ...store.JobStatus) ([]*store.Job, error)
	JobStats(ctx context.Context) (map[store.JobStatus]int, error)
	GetJob(ctx context.Context, id string) (*store.Job, error)
}

// JobService exposes read-only job operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(reader JobReader) *JobService {
	if reader == nil {
		return nil
	}
	return &JobService{store: reader}
}

// List returns the most recent jobs filtered by status.
func (s *JobService) List(ctx context.Context, limit int, statuses ...store.JobStatus) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListJobs(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.JobStats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobStats(stats), nil
}

// Describe fetches a single job.
func (s *JobService) Describe(ctx context.Context, id string) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}
