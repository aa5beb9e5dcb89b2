// internal/app/features/auditlog/handler.go
package auditlog

import (
	"github.com/dalemusser/promohub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Handler serves the audit trail to operators.
type Handler struct {
	Store *audit.Store
	Log   *zap.Logger
}

// NewHandler constructs an audit log handler bound to the audit store.
func NewHandler(store *audit.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Store: store,
		Log:   logger,
	}
}
