package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
)

// TemplateHandler handles message template API requests
type TemplateHandler struct {
	storage  interfaces.TemplateStorage
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(storage interfaces.TemplateStorage, logger arbor.ILogger) *TemplateHandler {
	return &TemplateHandler{
		storage:  storage,
		validate: validator.New(),
		logger:   logger,
	}
}

type saveTemplateRequest struct {
	Name string `json:"name" validate:"required"`
	Body string `json:"body" validate:"required"`
}

// TemplatesHandler dispatches GET/POST /api/templates
func (h *TemplateHandler) TemplatesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		templates, err := h.storage.ListTemplates(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to list templates")
			WriteError(w, http.StatusInternalServerError, "failed to list templates")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"templates": templates,
			"count":     len(templates),
		})

	case http.MethodPost:
		var req saveTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := h.validate.Struct(&req); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		tpl := models.NewMessageTemplate(req.Name, req.Body)
		if err := h.storage.SaveTemplate(r.Context(), tpl); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to save template")
			return
		}
		WriteJSON(w, http.StatusCreated, tpl)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// TemplateDetailHandler dispatches GET/DELETE /api/templates/{id}
func (h *TemplateHandler) TemplateDetailHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		tpl, err := h.storage.GetTemplate(r.Context(), id)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "template not found")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to load template")
			return
		}
		WriteJSON(w, http.StatusOK, tpl)

	case http.MethodDelete:
		if err := h.storage.DeleteTemplate(r.Context(), id); err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "template not found")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to delete template")
			return
		}
		WriteSuccess(w, "template deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
