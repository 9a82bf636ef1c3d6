package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
)

// StatusHandler reports process, session and queue health
type StatusHandler struct {
	jobStorage interfaces.JobStorage
	sessions   *browser.Store
	logger     arbor.ILogger
	startedAt  time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(jobStorage interfaces.JobStorage, sessions *browser.Store, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		jobStorage: jobStorage,
		sessions:   sessions,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// GetStatusHandler returns application status
// GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	queue := map[string]int{}
	for _, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusProcessing,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	} {
		count, err := h.jobStorage.CountByStatus(r.Context(), status)
		if err != nil {
			h.logger.Warn().Err(err).Str("status", string(status)).Msg("Failed to count jobs")
			continue
		}
		queue[string(status)] = count
	}

	session := map[string]interface{}{"alive": false, "verified": false}
	if sess := h.sessions.Get(); sess.Alive() {
		session["alive"] = true
		if !sess.LastVerifiedAt.IsZero() {
			session["verified"] = true
			session["last_verified_at"] = sess.LastVerifiedAt
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version": common.Version,
		"uptime":  time.Since(h.startedAt).String(),
		"queue":   queue,
		"session": session,
	})
}

// HealthHandler is a liveness probe
// GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
