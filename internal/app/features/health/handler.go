package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Pinger is the backend the health check probes. resource.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Backend Pinger
	Name    string
	Log     *zap.Logger
}

// NewHandler constructs a health Handler. name labels the backend in the
// response ("mongo" or "api").
func NewHandler(backend Pinger, name string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Backend: backend,
		Name:    name,
		Log:     logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Backend  string `json:"backend,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "backend":"mongo" }
//
// On backend failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Backend:  h.Name,
	}

	if h.Backend == nil {
		resp.Database = "unconfigured"
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if err := h.Backend.Ping(ctx); err != nil {
		h.Log.Error("health-check: backend ping failed", zap.String("backend", h.Name), zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
