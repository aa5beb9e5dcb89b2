package resource

import (
	"context"
	"errors"
	"fmt"

	catalogstore "github.com/dalemusser/promohub/internal/app/store/catalog"
	identificationstore "github.com/dalemusser/promohub/internal/app/store/identifications"
	memberstore "github.com/dalemusser/promohub/internal/app/store/members"
	promostore "github.com/dalemusser/promohub/internal/app/store/promos"
	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo is the Client backed directly by MongoDB collections.
type Mongo struct {
	db              *mongo.Database
	promos          *promostore.Store
	members         *memberstore.Store
	identifications *identificationstore.Store
	catalog         *catalogstore.Store
	clock           clockwork.Clock
}

// NewMongo builds the Mongo backend. A nil clock uses the real clock; the
// clock decides what "due" means for the batch queries.
func NewMongo(db *mongo.Database, clock clockwork.Clock) *Mongo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Mongo{
		db:              db,
		promos:          promostore.New(db),
		members:         memberstore.New(db),
		identifications: identificationstore.New(db),
		catalog:         catalogstore.New(db),
		clock:           clock,
	}
}

var _ Client = (*Mongo)(nil)

func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, memberstore.ErrDuplicateMember),
		errors.Is(err, promostore.ErrDuplicatePromo):
		return fmt.Errorf("%s: %w: %v", op, ErrAlreadyExists, err)
	case errors.Is(err, promostore.ErrStatusChanged),
		errors.Is(err, identificationstore.ErrAlreadyDecided):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (m *Mongo) withIdentifications(ctx context.Context, promos []models.Promo) ([]models.Promo, error) {
	if len(promos) == 0 {
		return promos, nil
	}
	ids := make([]string, len(promos))
	for i, p := range promos {
		ids[i] = p.ID
	}
	byPromo, err := m.identifications.ListByPromos(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range promos {
		promos[i].Identifications = byPromo[promos[i].ID]
	}
	return promos, nil
}

func (m *Mongo) listPromos(ctx context.Context, op string, find func() ([]models.Promo, error)) ([]models.Promo, error) {
	promos, err := find()
	if err != nil {
		return nil, mapErr(op, err)
	}
	promos, err = m.withIdentifications(ctx, promos)
	return promos, mapErr(op, err)
}

func (m *Mongo) ListPromosDueToStart(ctx context.Context) ([]models.Promo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	return m.listPromos(ctx, "list promos due to start", func() ([]models.Promo, error) {
		return m.promos.ListDueToStart(ctx, m.clock.Now().UTC())
	})
}

func (m *Mongo) ListPromosDueToArchive(ctx context.Context) ([]models.Promo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	return m.listPromos(ctx, "list promos due to archive", func() ([]models.Promo, error) {
		return m.promos.ListDueToArchive(ctx, m.clock.Now().UTC())
	})
}

func (m *Mongo) ListPromos(ctx context.Context) ([]models.Promo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	return m.listPromos(ctx, "list promos", func() ([]models.Promo, error) {
		return m.promos.List(ctx)
	})
}

func (m *Mongo) ListPromosByStatus(ctx context.Context, status models.PromoStatus) ([]models.Promo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	return m.listPromos(ctx, "list promos by status", func() ([]models.Promo, error) {
		return m.promos.ListByStatus(ctx, status)
	})
}

func (m *Mongo) GetPromo(ctx context.Context, id string) (models.Promo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	p, err := m.promos.GetByID(ctx, id)
	if err != nil {
		return models.Promo{}, mapErr("get promo", err)
	}
	withIdents, err := m.withIdentifications(ctx, []models.Promo{p})
	if err != nil {
		return models.Promo{}, mapErr("get promo", err)
	}
	return withIdents[0], nil
}

func (m *Mongo) CreatePromo(ctx context.Context, p models.Promo) (models.Promo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	created, err := m.promos.Create(ctx, models.Promo{
		Name:      p.Name,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		ProgramID: p.ProgramID,
		SiteID:    p.SiteID,
		Status:    models.PromoPending,
	})
	return created, mapErr("create promo", err)
}

func (m *Mongo) UpdatePromo(ctx context.Context, id string, upd models.PromoUpdate) (models.Promo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	p, err := m.promos.Update(ctx, id, upd)
	return p, mapErr("update promo", err)
}

func (m *Mongo) CreateMember(ctx context.Context, member models.Member) (models.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	created, err := m.members.Create(ctx, member)
	return created, mapErr("create member", err)
}

func (m *Mongo) GetMember(ctx context.Context, id string) (models.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	member, err := m.members.GetByID(ctx, id)
	return member, mapErr("get member", err)
}

func (m *Mongo) UpdateMember(ctx context.Context, id, firstName, lastName string) (models.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	member, err := m.members.UpdateNames(ctx, id, firstName, lastName)
	return member, mapErr("update member", err)
}

func (m *Mongo) CreateIdentification(ctx context.Context, memberID, promoID string) (models.Identification, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	ident, err := m.identifications.Create(ctx, models.Identification{
		MemberID: memberID,
		PromoID:  promoID,
		Status:   models.IdentificationPending,
	})
	return ident, mapErr("create identification", err)
}

func (m *Mongo) UpdateIdentificationStatus(ctx context.Context, id string, status models.IdentificationStatus) (models.Identification, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	ident, err := m.identifications.UpdateStatus(ctx, id, status)
	return ident, mapErr("update identification", err)
}

func (m *Mongo) GetIdentification(ctx context.Context, id string) (models.Identification, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	ident, err := m.identifications.GetByID(ctx, id)
	return ident, mapErr("get identification", err)
}

func (m *Mongo) ListActivePrograms(ctx context.Context) ([]models.Program, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	programs, err := m.catalog.ListActivePrograms(ctx)
	return programs, mapErr("list active programs", err)
}

func (m *Mongo) ListActiveSites(ctx context.Context) ([]models.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	sites, err := m.catalog.ListActiveSites(ctx)
	return sites, mapErr("list active sites", err)
}

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	return m.db.Client().Ping(ctx, readpref.Primary())
}
