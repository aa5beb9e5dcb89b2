package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/promohub/internal/app/features/auditlog"
	"github.com/dalemusser/promohub/internal/app/store/audit"
	"github.com/dalemusser/promohub/internal/app/system/auth"
	"github.com/dalemusser/promohub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type listBody struct {
	Items []struct {
		EventType string `json:"event_type"`
		PromoID   string `json:"promo_id"`
		ActorID   string `json:"actor_id"`
	} `json:"items"`
	Total int64 `json:"total"`
	Range struct {
		Start   int  `json:"start"`
		End     int  `json:"end"`
		HasNext bool `json:"has_next"`
	} `json:"range"`
}

func newTestHandler(t *testing.T) (*auditlog.Handler, *audit.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	return auditlog.NewHandler(store, zap.NewNop()), store
}

func seed(t *testing.T, store *audit.Store) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{Timestamp: base, Category: audit.CategoryLifecycle, EventType: audit.EventPromoCreated, PromoID: "p1", ActorID: "op", Success: true},
		{Timestamp: base.Add(time.Hour), Category: audit.CategoryLifecycle, EventType: audit.EventPromoStarted, PromoID: "p1", ActorID: "scheduler", Success: true},
		{Timestamp: base.Add(2 * time.Hour), Category: audit.CategoryAdmission, EventType: audit.EventIdentificationSubmitted, PromoID: "p2", MemberID: "m1", Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
}

func list(t *testing.T, h *auditlog.Handler, query string) listBody {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/audit"+query, nil)
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestServeList_All(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store)

	body := list(t, h, "")
	if body.Total != 3 || len(body.Items) != 3 {
		t.Fatalf("got total %d, %d items", body.Total, len(body.Items))
	}
	// Newest first.
	if body.Items[0].EventType != audit.EventIdentificationSubmitted {
		t.Errorf("first item = %q", body.Items[0].EventType)
	}
	if body.Range.Start != 1 || body.Range.End != 3 || body.Range.HasNext {
		t.Errorf("range = %+v", body.Range)
	}

	body = list(t, h, "?start=3")
	if len(body.Items) != 1 || body.Items[0].EventType != audit.EventPromoCreated {
		t.Errorf("start=3 items = %+v", body.Items)
	}
}

func TestServeList_Filters(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"by promo", "?promo_id=p1", 2},
		{"by category", "?category=" + audit.CategoryAdmission, 1},
		{"by event type", "?event_type=" + audit.EventPromoStarted, 1},
		{"by member", "?member_id=m1", 1},
		{"date range excludes", "?start_date=2025-09-02", 0},
		{"date range includes", "?start_date=2025-09-01&end_date=2025-09-01", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if body := list(t, h, tt.query); len(body.Items) != tt.want {
				t.Errorf("got %d items, want %d", len(body.Items), tt.want)
			}
		})
	}
}

func TestRoutes_RequireToken(t *testing.T) {
	h, _ := newTestHandler(t)
	hash, err := auth.HashToken("tok")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	r := chi.NewRouter()
	r.Mount("/audit", auditlog.Routes(h, auth.NewGuard(hash, nil, zap.NewNop())))

	req := httptest.NewRequest(http.MethodGet, "/audit/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodGet, "/audit/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
