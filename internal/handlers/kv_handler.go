package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/interfaces"
)

// KVHandler manages the key/value store holding secrets referenced from
// config via {key-name} placeholders. Values are never echoed back.
type KVHandler struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewKVHandler creates a new KV handler
func NewKVHandler(storage interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		storage: storage,
		logger:  logger,
	}
}

type setKVRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// KVHandler dispatches GET (list keys) and POST (set) /api/kv
func (h *KVHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := h.storage.GetAll(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list keys")
			return
		}
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})

	case http.MethodPost:
		var req setKVRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Key == "" {
			WriteError(w, http.StatusBadRequest, "key is required")
			return
		}
		if err := h.storage.Set(r.Context(), req.Key, req.Value); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to store key")
			return
		}
		h.logger.Info().Str("key", req.Key).Msg("KV entry updated via API")
		WriteSuccess(w, "key stored")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleDetail dispatches DELETE /api/kv/{key}
func (h *KVHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/kv/")
	if key == "" {
		WriteError(w, http.StatusBadRequest, "key is required")
		return
	}

	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := h.storage.Delete(r.Context(), key); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "key not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to delete key")
		return
	}
	WriteSuccess(w, "key deleted")
}
