package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(&common.BadgerConfig{Path: t.TempDir()}, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func newDMJob(t *testing.T) *models.Job {
	t.Helper()
	job, err := models.NewJob(models.JobTypeSendDM, &models.SendDMPayload{
		TargetUserID:   "u1",
		MessageContent: "hello",
	})
	require.NoError(t, err)
	return job
}

func TestJobStorageSaveAndGet(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	job := newDMJob(t)
	require.NoError(t, store.SaveJob(ctx, job))

	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, models.JobTypeSendDM, loaded.Type)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
	assert.Equal(t, 0, loaded.Attempts)
}

func TestJobStorageGetMissing(t *testing.T) {
	store := newTestManager(t).JobStorage()
	_, err := store.GetJob(context.Background(), "job_missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestFetchPendingOldestFirst(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	first := newDMJob(t)
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := newDMJob(t)

	require.NoError(t, store.SaveJob(ctx, second))
	require.NoError(t, store.SaveJob(ctx, first))

	pending, err := store.FetchPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest job must come first")
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestClaimTransitionsAndCounts(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	job := newDMJob(t)
	require.NoError(t, store.SaveJob(ctx, job))

	claimed, err := store.Claim(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts, "attempt counter moves at claim time")

	// A second claim must lose: the job is no longer pending
	_, err = store.Claim(ctx, job.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotPending)
}

func TestUpdateStatusRecordsResult(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	job := newDMJob(t)
	require.NoError(t, store.SaveJob(ctx, job))
	_, err := store.Claim(ctx, job.ID)
	require.NoError(t, err)

	result := &models.JobResult{Success: true, Details: "message sent", Attempt: 1}
	require.NoError(t, store.UpdateStatus(ctx, job.ID, models.JobStatusCompleted, result))

	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.Result)
	assert.True(t, loaded.Result.Success)
	assert.Equal(t, "message sent", loaded.Result.Details)
}

func TestRecoverOrphansPreservesAttempts(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	job := newDMJob(t)
	require.NoError(t, store.SaveJob(ctx, job))
	claimed, err := store.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, claimed.Attempts)

	// Simulated crash: the job is still processing on restart
	recovered, err := store.RecoverOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
	assert.Equal(t, 1, loaded.Attempts, "crashed attempt still counts against the budget")

	// Recovered job can be claimed again
	reclaimed, err := store.Claim(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reclaimed.Attempts)
}

func TestCountByStatus(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveJob(ctx, newDMJob(t)))
	}
	done := newDMJob(t)
	done.Status = models.JobStatusCompleted
	require.NoError(t, store.SaveJob(ctx, done))

	pending, err := store.CountByStatus(ctx, models.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	completed, err := store.CountByStatus(ctx, models.JobStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestListJobsFilterAndPaging(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := newDMJob(t)
		job.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveJob(ctx, job))
	}

	jobs, err := store.ListJobs(ctx, &interfaces.JobListOptions{Status: models.JobStatusPending, Limit: 2})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[0].CreatedAt.After(jobs[1].CreatedAt), "listing is newest first")

	none, err := store.ListJobs(ctx, &interfaces.JobListOptions{Status: models.JobStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteJob(t *testing.T) {
	store := newTestManager(t).JobStorage()
	ctx := context.Background()

	job := newDMJob(t)
	require.NoError(t, store.SaveJob(ctx, job))
	require.NoError(t, store.DeleteJob(ctx, job.ID))

	_, err := store.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, store.DeleteJob(ctx, job.ID), interfaces.ErrNotFound)
}
