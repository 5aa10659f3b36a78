package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteOptions carries the optional pieces of the router.
type RouteOptions struct {
	// Idempotency wraps the submission endpoints when set.
	Idempotency func(http.Handler) http.Handler
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		if opts.Idempotency != nil {
			r.Use(opts.Idempotency)
		}
		r.Post("/analyze", h.Analyze)
		r.Post("/upload", h.Upload)
		r.Post("/tasks/{task_id}/cancel", h.Cancel)
	})

	r.Get("/status/{task_id}", h.Status)
	r.Get("/download/{task_id}", h.Download)

	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}
}
