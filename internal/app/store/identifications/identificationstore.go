// internal/app/store/identifications/identificationstore.go
package identificationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrAlreadyDecided is returned by UpdateStatus when the identification is
// no longer pending.
var ErrAlreadyDecided = errors.New("identification already decided")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("identifications")}
}

// Create inserts a membership request. An empty status becomes pending.
func (s *Store) Create(ctx context.Context, ident models.Identification) (models.Identification, error) {
	now := time.Now().UTC()
	ident.ID = uuid.NewString()
	if ident.Status == "" {
		ident.Status = models.IdentificationPending
	}
	ident.CreatedAt = now
	ident.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, ident); err != nil {
		return models.Identification{}, err
	}
	return ident, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Identification, error) {
	var ident models.Identification
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ident); err != nil {
		return models.Identification{}, err
	}
	return ident, nil
}

// UpdateStatus moves a pending identification to status and returns the
// updated record. Returns mongo.ErrNoDocuments when the identification does
// not exist and ErrAlreadyDecided when it is no longer pending.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.IdentificationStatus) (models.Identification, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ident models.Identification
	filter := bson.M{"_id": id, "status": models.IdentificationPending}
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}}, opts).Decode(&ident)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if n, cerr := s.c.CountDocuments(ctx, bson.M{"_id": id}); cerr == nil && n > 0 {
			return models.Identification{}, ErrAlreadyDecided
		}
	}
	if err != nil {
		return models.Identification{}, err
	}
	return ident, nil
}

// ListByPromos returns the identifications of the given promos grouped by
// promo id, each group in creation order.
func (s *Store) ListByPromos(ctx context.Context, promoIDs []string) (map[string][]models.Identification, error) {
	out := make(map[string][]models.Identification, len(promoIDs))
	if len(promoIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"promo_id": bson.M{"$in": promoIDs}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var ident models.Identification
		if err := cur.Decode(&ident); err != nil {
			return nil, err
		}
		out[ident.PromoID] = append(out[ident.PromoID], ident)
	}
	return out, cur.Err()
}

// ListByMember returns every request made by a member.
func (s *Store) ListByMember(ctx context.Context, memberID string) ([]models.Identification, error) {
	cur, err := s.c.Find(ctx, bson.M{"member_id": memberID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Identification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
