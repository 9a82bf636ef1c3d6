// -----------------------------------------------------------------------
// Job Runner - turns queued work into outcomes, one attempt at a time
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
)

// SessionProvider supplies a verified browser session on demand. Ensure is
// expected to be cheap when a verified session already exists.
type SessionProvider interface {
	Ensure(ctx context.Context) (*browser.Session, error)
	Invalidate()
}

// Executor performs concrete site actions against a verified session
type Executor interface {
	SendMessage(sess *browser.Session, targetUserID, text string) models.ActionResult
	CreatePost(sess *browser.Session, mediaPath, caption string) models.ActionResult
}

// Runner is the single cooperative loop that pulls pending jobs, acquires a
// session through the provider and dispatches each job to the executor.
// Jobs run strictly one at a time; the browser session is a serially
// reusable resource.
type Runner struct {
	store    interfaces.JobStorage
	sessions SessionProvider
	executor Executor
	events   interfaces.EventService
	config   common.QueueConfig
	logger   arbor.ILogger

	stop chan struct{}
	done chan struct{}
}

// NewRunner creates a job runner
func NewRunner(store interfaces.JobStorage, sessions SessionProvider, executor Executor, events interfaces.EventService, config common.QueueConfig, logger arbor.ILogger) *Runner {
	return &Runner{
		store:    store,
		sessions: sessions,
		executor: executor,
		events:   events,
		config:   config,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start recovers orphaned jobs from a previous crash and enters the poll
// loop. It blocks until Stop is called or the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	recovered, err := r.store.RecoverOrphans(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover orphaned jobs: %w", err)
	}
	if recovered > 0 {
		r.logger.Info().Int("count", recovered).Msg("Re-queued jobs orphaned by previous shutdown")
	}

	interval := r.config.PollIntervalDuration()
	r.logger.Info().
		Str("poll_interval", interval.String()).
		Int("max_retries", r.config.MaxRetries).
		Msg("Job runner started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Job runner stopping (context cancelled)")
			return ctx.Err()
		case <-r.stop:
			r.logger.Info().Msg("Job runner stopping")
			return nil
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("Poll cycle failed")
			}
		}
	}
}

// Stop signals the loop to exit after the in-flight job finishes and waits
// for it.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}

// RunOnce executes one poll cycle: fetch pending jobs oldest first and
// process each in order.
func (r *Runner) RunOnce(ctx context.Context) error {
	pending, err := r.store.FetchPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	for _, job := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.process(ctx, job)
	}
	return nil
}

// process runs exactly one attempt of one job. Every path out of here
// leaves the job in a well-defined status.
func (r *Runner) process(ctx context.Context, job *models.Job) {
	claimed, err := r.store.Claim(ctx, job.ID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotPending) || errors.Is(err, interfaces.ErrNotFound) {
			return
		}
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to claim job")
		return
	}

	r.logger.Info().
		Str("job_id", claimed.ID).
		Str("type", string(claimed.Type)).
		Int("attempt", claimed.Attempts).
		Msg("Processing job")
	r.publish(ctx, interfaces.EventJobClaimed, claimed, nil)

	// A job type this build does not know can never succeed, fail it
	// before spending a login on it.
	if claimed.Type != models.JobTypeSendDM && claimed.Type != models.JobTypeCreatePost {
		r.finish(ctx, claimed, models.JobStatusFailed, &models.JobResult{
			Success: false,
			Error:   fmt.Sprintf("unknown job type: %s", claimed.Type),
			Attempt: claimed.Attempts,
		})
		return
	}

	sess, err := r.sessions.Ensure(ctx)
	if err != nil {
		r.infraFailure(ctx, claimed, fmt.Sprintf("session not available: %v", err))
		return
	}
	if !sess.Alive() {
		r.sessions.Invalidate()
		r.infraFailure(ctx, claimed, "session died before dispatch")
		return
	}

	result := r.dispatch(sess, claimed)
	result.Attempt = claimed.Attempts

	if result.Success {
		r.finish(ctx, claimed, models.JobStatusCompleted, &result)
		return
	}

	// The action may have taken the session down with it; make the next
	// attempt start from a fresh login instead of a poisoned page.
	if !sess.Alive() {
		r.sessions.Invalidate()
	}

	if claimed.Attempts >= r.config.MaxRetries {
		result.Error = fmt.Sprintf("retries exhausted after attempt %d: %s", claimed.Attempts, result.Error)
		r.finish(ctx, claimed, models.JobStatusFailed, &result)
		return
	}
	r.requeue(ctx, claimed, &result)
}

// dispatch decodes the payload and runs the matching executor operation.
// Decode failures are folded into a failed result like any other.
func (r *Runner) dispatch(sess *browser.Session, job *models.Job) models.JobResult {
	switch job.Type {
	case models.JobTypeSendDM:
		payload, err := job.SendDMPayload()
		if err != nil {
			return models.JobResult{Success: false, Error: err.Error()}
		}
		return toJobResult(r.executor.SendMessage(sess, payload.TargetUserID, payload.MessageContent))

	case models.JobTypeCreatePost:
		payload, err := job.CreatePostPayload()
		if err != nil {
			return models.JobResult{Success: false, Error: err.Error()}
		}
		return toJobResult(r.executor.CreatePost(sess, payload.MediaPath, payload.Caption))

	default:
		return models.JobResult{Success: false, Error: fmt.Sprintf("unknown job type: %s", job.Type)}
	}
}

// infraFailure handles failures that say nothing about the job itself: the
// job goes back to pending unless its retry budget is spent.
func (r *Runner) infraFailure(ctx context.Context, job *models.Job, reason string) {
	result := &models.JobResult{Success: false, Error: reason, Attempt: job.Attempts}
	if job.Attempts >= r.config.MaxRetries {
		result.Error = fmt.Sprintf("retries exhausted after attempt %d: %s", job.Attempts, reason)
		r.finish(ctx, job, models.JobStatusFailed, result)
		return
	}
	r.requeue(ctx, job, result)
}

func (r *Runner) finish(ctx context.Context, job *models.Job, status models.JobStatus, result *models.JobResult) {
	if err := r.store.UpdateStatus(ctx, job.ID, status, result); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job outcome")
		return
	}

	event := interfaces.EventJobCompleted
	if status == models.JobStatusFailed {
		event = interfaces.EventJobFailed
		r.logger.Warn().
			Str("job_id", job.ID).
			Int("attempt", job.Attempts).
			Str("error", result.Error).
			Msg("Job failed terminally")
	} else {
		r.logger.Info().
			Str("job_id", job.ID).
			Int("attempt", job.Attempts).
			Msg("Job completed")
	}
	r.publish(ctx, event, job, result)
}

func (r *Runner) requeue(ctx context.Context, job *models.Job, result *models.JobResult) {
	if err := r.store.UpdateStatus(ctx, job.ID, models.JobStatusPending, result); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to re-queue job")
		return
	}
	r.logger.Info().
		Str("job_id", job.ID).
		Int("attempt", job.Attempts).
		Int("max_retries", r.config.MaxRetries).
		Str("error", result.Error).
		Msg("Job re-queued for retry")
	r.publish(ctx, interfaces.EventJobRequeued, job, result)
}

func (r *Runner) publish(ctx context.Context, eventType interfaces.EventType, job *models.Job, result *models.JobResult) {
	if r.events == nil {
		return
	}
	payload := map[string]interface{}{
		"job_id":   job.ID,
		"job_type": string(job.Type),
		"attempt":  job.Attempts,
	}
	if result != nil {
		payload["success"] = result.Success
		if result.Error != "" {
			payload["error"] = result.Error
		}
	}
	_ = r.events.Publish(ctx, interfaces.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// toJobResult folds an executor result into the persisted form
func toJobResult(result models.ActionResult) models.JobResult {
	return models.JobResult{
		Success: result.Success,
		Details: result.Details,
		Error:   result.Err,
	}
}
