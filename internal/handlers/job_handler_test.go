package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
	badgerstore "github.com/fanflow/fanflow/internal/storage/badger"
)

func newTestJobHandler(t *testing.T) (*JobHandler, interfaces.JobStorage) {
	t.Helper()
	manager, err := badgerstore.NewManager(&common.BadgerConfig{Path: t.TempDir()}, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewJobHandler(manager.JobStorage(), nil, common.GetLogger()), manager.JobStorage()
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateJobEnqueuesSendDM(t *testing.T) {
	handler, store := newTestJobHandler(t)

	rec := postJSON(t, handler.JobsHandler, "/api/jobs", map[string]interface{}{
		"job_type": "send_dm",
		"job_payload": map[string]string{
			"target_of_user_id": "u77",
			"message_content":   "hi!",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.JobTypeSendDM, created.Type)
	assert.Equal(t, models.JobStatusPending, created.Status)

	loaded, err := store.GetJob(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
}

func TestCreateJobRejectsUnknownType(t *testing.T) {
	handler, _ := newTestJobHandler(t)
	rec := postJSON(t, handler.JobsHandler, "/api/jobs", map[string]interface{}{
		"job_type":    "follow_user",
		"job_payload": map[string]string{"x": "y"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown job type")
}

func TestCreateJobRejectsIncompletePayload(t *testing.T) {
	handler, _ := newTestJobHandler(t)
	rec := postJSON(t, handler.JobsHandler, "/api/jobs", map[string]interface{}{
		"job_type":    "send_dm",
		"job_payload": map[string]string{"target_of_user_id": "u77"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobsFiltersByStatus(t *testing.T) {
	handler, store := newTestJobHandler(t)
	ctx := context.Background()

	job, err := models.NewJob(models.JobTypeSendDM, &models.SendDMPayload{TargetUserID: "u1", MessageContent: "m"})
	require.NoError(t, err)
	require.NoError(t, store.SaveJob(ctx, job))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=pending", nil)
	rec := httptest.NewRecorder()
	handler.JobsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed", nil)
	rec = httptest.NewRecorder()
	handler.JobsHandler(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestJobDetailNotFound(t *testing.T) {
	handler, _ := newTestJobHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job_missing", nil)
	rec := httptest.NewRecorder()
	handler.JobDetailHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobDetailDelete(t *testing.T) {
	handler, store := newTestJobHandler(t)
	ctx := context.Background()

	job, err := models.NewJob(models.JobTypeSendDM, &models.SendDMPayload{TargetUserID: "u1", MessageContent: "m"})
	require.NoError(t, err)
	require.NoError(t, store.SaveJob(ctx, job))

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	handler.JobDetailHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = store.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
