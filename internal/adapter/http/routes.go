package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the health probes and the versioned API on r.
// writeMW wraps only the routes that start processing (idempotency keys
// make no sense on reads).
func MountRoutes(r chi.Router, h *Handlers, writeMW ...func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Fragments
		r.With(writeMW...).Post("/fragments", h.SubmitFragment)

		// Responses
		r.Get("/responses/{id}", h.GetResponse)
		r.Get("/subjects/{id}/responses", h.ListSubjectResponses)

		// Agents
		r.Get("/agents", h.ListAgents)
	})
}
