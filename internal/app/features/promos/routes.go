package promos

import (
	"github.com/dalemusser/promohub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the operator router, mounted under /promos. Every route
// requires the operator bearer token.
func Routes(h *Handler, guard *auth.Guard) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.Require)
	r.Get("/", h.ServeList)
	r.Post("/batches/start", h.ServeStartBatch)
	r.Post("/batches/archive", h.ServeArchiveBatch)
	r.Post("/{id}/start", h.ServeStart)
	r.Post("/{id}/archive", h.ServeArchive)
	return r
}
