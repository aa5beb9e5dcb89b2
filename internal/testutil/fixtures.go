package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data directly in the
// collections, bypassing the stores.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreatePromo inserts a promo with the given status and dates.
func (f *Fixtures) CreatePromo(ctx context.Context, name string, status models.PromoStatus, start, end time.Time) models.Promo {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Promo{
		ID:        uuid.NewString(),
		Name:      name,
		NameCI:    text.Fold(name),
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		ProgramID: "prog-test",
		SiteID:    "site-test",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("promos").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test promo: %v", err)
	}
	return p
}

// CreateActivePromo inserts an active promo bound to roleID.
func (f *Fixtures) CreateActivePromo(ctx context.Context, name, roleID string, start, end time.Time) models.Promo {
	f.t.Helper()

	p := f.CreatePromo(ctx, name, models.PromoActive, start, end)
	if _, err := f.db.Collection("promos").UpdateByID(ctx, p.ID, bson.M{
		"$set": bson.M{"role_id": roleID},
	}); err != nil {
		f.t.Fatalf("failed to bind role on test promo: %v", err)
	}
	p.RoleID = roleID
	return p
}

// CreateMember inserts a member keyed by the platform user id.
func (f *Fixtures) CreateMember(ctx context.Context, id, first, last string) models.Member {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.Member{
		ID:        id,
		FirstName: first,
		LastName:  last,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test member: %v", err)
	}
	return m
}

// CreateIdentification inserts a membership request with the given status.
func (f *Fixtures) CreateIdentification(ctx context.Context, memberID, promoID string, status models.IdentificationStatus) models.Identification {
	f.t.Helper()

	now := time.Now().UTC()
	ident := models.Identification{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		PromoID:   promoID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("identifications").InsertOne(ctx, ident); err != nil {
		f.t.Fatalf("failed to create test identification: %v", err)
	}
	return ident
}

// CreateProgram inserts a program.
func (f *Fixtures) CreateProgram(ctx context.Context, name string, active bool) models.Program {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Program{
		ID:        uuid.NewString(),
		Name:      name,
		NameCI:    text.Fold(name),
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("programs").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test program: %v", err)
	}
	return p
}

// CreateSite inserts a site.
func (f *Fixtures) CreateSite(ctx context.Context, name string, active bool) models.Site {
	f.t.Helper()

	now := time.Now().UTC()
	s := models.Site{
		ID:        uuid.NewString(),
		Name:      name,
		NameCI:    text.Fold(name),
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("sites").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create test site: %v", err)
	}
	return s
}
