// internal/app/store/promos/promostore.go
package promostore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/promohub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicatePromo = errors.New("a promo with this name already exists")

// ErrStatusChanged is returned by a conditional Update when the promo is no
// longer in the expected status.
var ErrStatusChanged = errors.New("promo status changed")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("promos")}
}

// Create inserts a promo. ID, NameCI and timestamps are assigned here;
// an empty status becomes pending.
func (s *Store) Create(ctx context.Context, p models.Promo) (models.Promo, error) {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.NameCI = text.Fold(p.Name)
	if p.Status == "" {
		p.Status = models.PromoPending
	}
	p.Identifications = nil
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Promo{}, ErrDuplicatePromo
		}
		return models.Promo{}, err
	}
	return p, nil
}

// GetByID returns mongo.ErrNoDocuments when the promo does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (models.Promo, error) {
	var p models.Promo
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Promo{}, err
	}
	return p, nil
}

// List returns every promo ordered by start date.
func (s *Store) List(ctx context.Context) ([]models.Promo, error) {
	return s.find(ctx, bson.M{})
}

// ListByStatus returns the promos in one lifecycle state, ordered by start date.
func (s *Store) ListByStatus(ctx context.Context, status models.PromoStatus) ([]models.Promo, error) {
	return s.find(ctx, bson.M{"status": status})
}

// ListDueToStart returns pending promos whose start date is not after now.
func (s *Store) ListDueToStart(ctx context.Context, now time.Time) ([]models.Promo, error) {
	return s.find(ctx, bson.M{
		"status":     models.PromoPending,
		"start_date": bson.M{"$lte": now},
	})
}

// ListDueToArchive returns active promos whose end date is before now.
func (s *Store) ListDueToArchive(ctx context.Context, now time.Time) ([]models.Promo, error) {
	return s.find(ctx, bson.M{
		"status":   models.PromoActive,
		"end_date": bson.M{"$lt": now},
	})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Promo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Promo
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the non-nil fields of upd and refreshes UpdatedAt.
// Returns mongo.ErrNoDocuments when the promo does not exist, and
// ErrStatusChanged when upd.ExpectStatus no longer matches.
func (s *Store) Update(ctx context.Context, id string, upd models.PromoUpdate) (models.Promo, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
		set["name_ci"] = text.Fold(*upd.Name)
	}
	if upd.StartDate != nil {
		set["start_date"] = *upd.StartDate
	}
	if upd.EndDate != nil {
		set["end_date"] = *upd.EndDate
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.RoleID != nil {
		set["role_id"] = *upd.RoleID
	}

	filter := bson.M{"_id": id}
	if upd.ExpectStatus != nil {
		filter["status"] = *upd.ExpectStatus
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Promo
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&p)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Promo{}, ErrDuplicatePromo
		}
		if errors.Is(err, mongo.ErrNoDocuments) && upd.ExpectStatus != nil {
			if n, cerr := s.c.CountDocuments(ctx, bson.M{"_id": id}); cerr == nil && n > 0 {
				return models.Promo{}, ErrStatusChanged
			}
		}
		return models.Promo{}, err
	}
	return p, nil
}
