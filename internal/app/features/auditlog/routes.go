// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/promohub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log under the path where this router is mounted
// (typically "/audit" from bootstrap). Access requires the operator token.
func Routes(h *Handler, guard *auth.Guard) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.Require)
	r.Get("/", h.ServeList)
	return r
}
