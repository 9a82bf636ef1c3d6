package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
)

// JobStorage implements the durable job queue on Badger.
// Claim serializes through claimMu so one process never races itself; across
// processes the pending check inside the claim read-modify-write is the
// update-if-pending guard.
type JobStorage struct {
	db      *BadgerDB
	logger  arbor.ILogger
	claimMu sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	job.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(job.ID, *job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("BadgerDB: Failed to upsert job")
		return fmt.Errorf("failed to save job: %w", err)
	}

	s.logger.Trace().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Msg("BadgerDB: Job saved")
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return &job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status and type
func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	var query *badgerhold.Query
	if opts != nil && opts.Status != "" {
		query = badgerhold.Where("Status").Eq(opts.Status)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	filtered := jobs[:0]
	for _, job := range jobs {
		if opts != nil && opts.Type != "" && job.Type != opts.Type {
			continue
		}
		filtered = append(filtered, job)
	}
	jobs = filtered

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if opts != nil {
		if opts.Offset > 0 {
			if opts.Offset >= len(jobs) {
				jobs = nil
			} else {
				jobs = jobs[opts.Offset:]
			}
		}
		if opts.Limit > 0 && opts.Limit < len(jobs) {
			jobs = jobs[:opts.Limit]
		}
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// FetchPending returns all pending jobs, oldest first
func (s *JobStorage) FetchPending(ctx context.Context) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusPending)); err != nil {
		return nil, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// Claim atomically transitions a pending job to processing and increments
// its attempt counter. The attempt counter moves before execution so a crash
// mid-job still counts against the retry budget.
func (s *JobStorage) Claim(ctx context.Context, jobID string) (*models.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job %s for claim: %w", jobID, err)
	}

	if job.Status != models.JobStatusPending {
		return nil, interfaces.ErrNotPending
	}

	job.Status = models.JobStatusProcessing
	job.Attempts++
	job.UpdatedAt = time.Now()

	if err := s.db.Store().Update(jobID, job); err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Int("attempt", job.Attempts).
		Msg("Job claimed")
	return &job, nil
}

// UpdateStatus records the outcome of an attempt
func (s *JobStorage) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, result *models.JobResult) error {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to load job %s for status update: %w", jobID, err)
	}

	job.Status = status
	if result != nil {
		job.Result = result
	}
	job.UpdatedAt = time.Now()

	if err := s.db.Store().Update(jobID, job); err != nil {
		return fmt.Errorf("failed to update job %s status: %w", jobID, err)
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("Job status updated")
	return nil
}

// RecoverOrphans re-queues jobs left in processing by a crashed worker.
// Their attempt counters were already incremented at claim time, so the
// retry budget is preserved across the crash.
func (s *JobStorage) RecoverOrphans(ctx context.Context) (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusProcessing)); err != nil {
		return 0, fmt.Errorf("failed to find orphaned jobs: %w", err)
	}

	recovered := 0
	for i := range jobs {
		job := jobs[i]
		job.Status = models.JobStatusPending
		job.UpdatedAt = time.Now()
		if err := s.db.Store().Update(job.ID, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to re-queue orphaned job")
			continue
		}
		s.logger.Info().
			Str("job_id", job.ID).
			Int("attempts", job.Attempts).
			Msg("Orphaned job re-queued")
		recovered++
	}
	return recovered, nil
}

func (s *JobStorage) CountByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	return int(count), nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.Job{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}
