package interfaces

import (
	"context"
	"errors"

	"github.com/fanflow/fanflow/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrNotPending is returned by Claim when a job was already taken
	ErrNotPending = errors.New("job is not pending")
)

// JobStorage is the durable queue contract the job runner depends on.
// Claim is the single cross-process mutual-exclusion primitive: it must
// transition pending -> processing and increment attempts atomically, and
// fail if the job is no longer pending.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)

	// FetchPending returns all pending jobs ordered by creation time
	// ascending (oldest first).
	FetchPending(ctx context.Context) ([]*models.Job, error)

	// Claim atomically marks a pending job processing and increments its
	// attempt counter, returning the updated record. Returns ErrNotPending
	// if another worker got there first.
	Claim(ctx context.Context, jobID string) (*models.Job, error)

	// UpdateStatus records the outcome of an attempt.
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, result *models.JobResult) error

	// RecoverOrphans re-queues jobs stranded in processing by a crashed
	// worker. Returns the number of jobs recovered.
	RecoverOrphans(ctx context.Context) (int, error)

	CountByStatus(ctx context.Context, status models.JobStatus) (int, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// JobListOptions filters and pages job listings
type JobListOptions struct {
	Status models.JobStatus
	Type   models.JobType
	Limit  int
	Offset int
}

// TemplateStorage persists reusable message templates
type TemplateStorage interface {
	SaveTemplate(ctx context.Context, tpl *models.MessageTemplate) error
	GetTemplate(ctx context.Context, id string) (*models.MessageTemplate, error)
	ListTemplates(ctx context.Context) ([]*models.MessageTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// KeyValueStorage holds secrets and settings referenced from config
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	GetAll(ctx context.Context) (map[string]string, error)
	Delete(ctx context.Context, key string) error
}

// StorageManager aggregates the storage backends and owns the connection
type StorageManager interface {
	JobStorage() JobStorage
	TemplateStorage() TemplateStorage
	KVStorage() KeyValueStorage
	Close() error
}
