// Package promos is the operator HTTP surface: listing promos and running
// lifecycle transitions on demand.
package promos

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/promohub/internal/app/lifecycle"
	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/auth"
	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves /promos.
type Handler struct {
	RC     resource.Client
	Orch   *lifecycle.Orchestrator
	Sched  *lifecycle.Scheduler
	Notify *lifecycle.Notifier
	Log    *zap.Logger
}

// NewHandler constructs a promos Handler.
func NewHandler(rc resource.Client, orch *lifecycle.Orchestrator, sched *lifecycle.Scheduler, notify *lifecycle.Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{RC: rc, Orch: orch, Sched: sched, Notify: notify, Log: logger}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ServeList handles GET /promos. An optional ?status= filters by status.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Store())
	defer cancel()

	var (
		list []models.Promo
		err  error
	)
	if s := r.URL.Query().Get("status"); s != "" {
		status := models.PromoStatus(s)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status", Message: s})
			return
		}
		list, err = h.RC.ListPromosByStatus(ctx, status)
	} else {
		list, err = h.RC.ListPromos(ctx)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Promo{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ServeStartBatch handles POST /promos/batches/start.
func (h *Handler) ServeStartBatch(w http.ResponseWriter, r *http.Request) {
	h.serveBatch(w, r, h.Sched.RunStartBatch)
}

// ServeArchiveBatch handles POST /promos/batches/archive.
func (h *Handler) ServeArchiveBatch(w http.ResponseWriter, r *http.Request) {
	h.serveBatch(w, r, h.Sched.RunArchiveBatch)
}

func (h *Handler) serveBatch(w http.ResponseWriter, r *http.Request, run func(context.Context) (lifecycle.BatchReport, error)) {
	ctx, cancel := context.WithTimeout(h.actorCtx(r), timeouts.Batch())
	defer cancel()

	rep, err := run(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ServeStart handles POST /promos/{id}/start.
func (h *Handler) ServeStart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(h.actorCtx(r), timeouts.Batch())
	defer cancel()

	id := chi.URLParam(r, "id")
	rep, err := h.Orch.StartPromo(ctx, models.Promo{ID: id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if promo, err := h.RC.GetPromo(ctx, id); err == nil {
		h.Notify.Started(ctx, promo, rep)
	}
	writeJSON(w, http.StatusOK, rep)
}

// ServeArchive handles POST /promos/{id}/archive.
func (h *Handler) ServeArchive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(h.actorCtx(r), timeouts.Batch())
	defer cancel()

	id := chi.URLParam(r, "id")
	rep, err := h.Orch.ArchivePromo(ctx, models.Promo{ID: id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if promo, err := h.RC.GetPromo(ctx, id); err == nil {
		h.Notify.Archived(ctx, promo, rep)
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) actorCtx(r *http.Request) context.Context {
	if auth.IsOperator(r) {
		return lifecycle.WithActor(r.Context(), auth.OperatorActor)
	}
	return r.Context()
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.Log.Error("operator request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err))
	} else {
		h.Log.Info("operator request refused",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: string(kind), Message: apperr.UserMessage(err)})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindTransition:
		return http.StatusConflict
	case apperr.KindValidation, apperr.KindExpired:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
