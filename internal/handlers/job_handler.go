package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
)

// JobHandler handles job queue API requests
type JobHandler struct {
	jobStorage interfaces.JobStorage
	events     interfaces.EventService
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobStorage interfaces.JobStorage, events interfaces.EventService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobStorage: jobStorage,
		events:     events,
		validate:   validator.New(),
		logger:     logger,
	}
}

// createJobRequest is the POST /api/jobs body
type createJobRequest struct {
	Type    models.JobType  `json:"job_type" validate:"required"`
	Payload json.RawMessage `json:"job_payload" validate:"required"`
}

// CreateJobHandler enqueues a new job
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := h.decodePayload(req.Type, req.Payload)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := models.NewJob(req.Type, payload)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to build job")
		return
	}

	if err := h.jobStorage.SaveJob(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save job")
		WriteError(w, http.StatusInternalServerError, "failed to save job")
		return
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Msg("Job enqueued via API")

	if h.events != nil {
		_ = h.events.Publish(r.Context(), interfaces.Event{
			Type:      interfaces.EventJobCreated,
			Timestamp: time.Now(),
			Payload:   map[string]interface{}{"job_id": job.ID, "job_type": string(job.Type)},
		})
	}

	WriteJSON(w, http.StatusCreated, job)
}

// decodePayload validates the typed payload for a job type. Unknown types
// are rejected at the API boundary; the runner would only fail them later.
func (h *JobHandler) decodePayload(jobType models.JobType, raw json.RawMessage) (interface{}, error) {
	switch jobType {
	case models.JobTypeSendDM:
		var p models.SendDMPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid send_dm payload: %w", err)
		}
		if err := h.validate.Struct(&p); err != nil {
			return nil, fmt.Errorf("invalid send_dm payload: %w", err)
		}
		return &p, nil

	case models.JobTypeCreatePost:
		var p models.CreatePostPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid create_post payload: %w", err)
		}
		if err := h.validate.Struct(&p); err != nil {
			return nil, fmt.Errorf("invalid create_post payload: %w", err)
		}
		return &p, nil

	default:
		return nil, fmt.Errorf("unknown job type: %s", jobType)
	}
}

// ListJobsHandler returns jobs, newest first
// GET /api/jobs?status=pending&type=send_dm&limit=50&offset=0
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.JobListOptions{
		Status: models.JobStatus(r.URL.Query().Get("status")),
		Type:   models.JobType(r.URL.Query().Get("type")),
		Limit:  50,
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			opts.Limit = parsed
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if parsed, err := strconv.Atoi(offset); err == nil && parsed > 0 {
			opts.Offset = parsed
		}
	}

	jobs, err := h.jobStorage.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// JobDetailHandler dispatches GET/DELETE /api/jobs/{id}
func (h *JobHandler) JobDetailHandler(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := h.jobStorage.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "job not found")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to load job")
			return
		}
		WriteJSON(w, http.StatusOK, job)

	case http.MethodDelete:
		if err := h.jobStorage.DeleteJob(r.Context(), jobID); err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "job not found")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to delete job")
			return
		}
		WriteSuccess(w, "job deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// JobsHandler dispatches GET/POST /api/jobs
func (h *JobHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListJobsHandler(w, r)
	case http.MethodPost:
		h.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
