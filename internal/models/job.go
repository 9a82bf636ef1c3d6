// -----------------------------------------------------------------------
// Automation Job - Durable queue record for site automation work
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fanflow/fanflow/internal/common"
)

// JobType identifies the site action a job performs
type JobType string

const (
	JobTypeSendDM     JobType = "send_dm"
	JobTypeCreatePost JobType = "create_post"
)

// JobStatus is the durable lifecycle state of a job.
//
// Allowed transitions:
//
//	pending -> processing            (runner claims the job, attempts++)
//	processing -> completed          (action succeeded)
//	processing -> pending            (non-terminal failure, will be retried)
//	processing -> failed             (attempts exhausted, or unrecoverable)
//
// failed and completed are terminal: a job there never transitions again.
// A job stranded in processing by a crash is re-queued to pending on the
// next startup sweep, which keeps recovery idempotent.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal returns true for statuses that must never transition again
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one unit of queued automation work with its own retry budget
type Job struct {
	ID       string          `json:"id" badgerhold:"key"`
	Type     JobType         `json:"job_type"`
	Payload  json.RawMessage `json:"job_payload"`
	Status   JobStatus       `json:"status" badgerhold:"index"`
	Attempts int             `json:"attempts"`
	Result   *JobResult      `json:"result_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobResult is the structured outcome of the most recent attempt
type JobResult struct {
	Success bool   `json:"success"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
	Attempt int    `json:"attempt,omitempty"` // Which attempt produced this result
}

// SendDMPayload is the payload for send_dm jobs
type SendDMPayload struct {
	TargetUserID   string `json:"target_of_user_id" validate:"required"`
	MessageContent string `json:"message_content" validate:"required"`
}

// CreatePostPayload is the payload for create_post jobs
type CreatePostPayload struct {
	MediaPath string `json:"media_path" validate:"required"`
	Caption   string `json:"caption"`
}

// NewJob creates a pending job with a fresh ID and marshaled payload
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	now := time.Now()
	return &Job{
		ID:        common.NewJobID(),
		Type:      jobType,
		Payload:   data,
		Status:    JobStatusPending,
		Attempts:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks the structural invariants of a job record
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.Type == "" {
		return fmt.Errorf("job type is required")
	}
	if len(j.Payload) == 0 {
		return fmt.Errorf("job payload is required")
	}
	if j.Attempts < 0 {
		return fmt.Errorf("job attempts cannot be negative")
	}
	return nil
}

// SendDMPayload decodes the payload of a send_dm job
func (j *Job) SendDMPayload() (*SendDMPayload, error) {
	if j.Type != JobTypeSendDM {
		return nil, fmt.Errorf("job %s is %s, not %s", j.ID, j.Type, JobTypeSendDM)
	}
	var p SendDMPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode send_dm payload: %w", err)
	}
	return &p, nil
}

// CreatePostPayload decodes the payload of a create_post job
func (j *Job) CreatePostPayload() (*CreatePostPayload, error) {
	if j.Type != JobTypeCreatePost {
		return nil, fmt.Errorf("job %s is %s, not %s", j.ID, j.Type, JobTypeCreatePost)
	}
	var p CreatePostPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode create_post payload: %w", err)
	}
	return &p, nil
}
