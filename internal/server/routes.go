package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket event stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Job queue
	mux.HandleFunc("/api/jobs", s.app.JobHandler.JobsHandler)       // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobDetailHandler) // GET/DELETE /{id}

	// Message templates
	mux.HandleFunc("/api/templates", s.app.TemplateHandler.TemplatesHandler)
	mux.HandleFunc("/api/templates/", s.app.TemplateHandler.TemplateDetailHandler)

	// Key/value secrets
	mux.HandleFunc("/api/kv", s.app.KVHandler.Handle)
	mux.HandleFunc("/api/kv/", s.app.KVHandler.HandleDetail)

	// Application status
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)

	return mux
}
