// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/promohub/internal/app/store/audit"
	"github.com/dalemusser/promohub/internal/app/system/paging"
	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ServeList handles GET /audit. Query parameters: promo_id, member_id,
// category, event_type, start_date, end_date (YYYY-MM-DD, UTC) and start
// (1-based index of the first event).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Store())
	defer cancel()

	q := r.URL.Query()
	start := paging.ParseStart(r)

	filter := audit.QueryFilter{
		PromoID:   strings.TrimSpace(q.Get("promo_id")),
		MemberID:  strings.TrimSpace(q.Get("member_id")),
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Limit:     paging.PageSize,
		Offset:    paging.Offset(start),
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.StartTime = &t
		}
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			// End of day
			endOfDay := t.Add(24*time.Hour - time.Second)
			filter.EndTime = &endOfDay
		}
	}

	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.Log.Error("audit query failed", zap.Error(err))
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}
	total, err := h.Store.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("audit count failed", zap.Error(err))
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}

	resp := listResponse{
		Items: make([]listItem, 0, len(events)),
		Total: total,
		Range: paging.ComputeRange(start, len(events), total),
	}
	for _, e := range events {
		resp.Items = append(resp.Items, toItem(e))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
