// internal/app/store/members/memberstore.go
package memberstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/promohub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrDuplicateMember is returned when a member with the same platform id exists.
var ErrDuplicateMember = errors.New("member already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("members")}
}

// Create inserts a member keyed by its platform user id.
func (s *Store) Create(ctx context.Context, m models.Member) (models.Member, error) {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Member{}, ErrDuplicateMember
		}
		return models.Member{}, err
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Member, error) {
	var m models.Member
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return models.Member{}, err
	}
	return m, nil
}

// UpdateNames changes the member's names. Returns mongo.ErrNoDocuments when
// the member does not exist.
func (s *Store) UpdateNames(ctx context.Context, id, firstName, lastName string) (models.Member, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Member
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"first_name": firstName,
		"last_name":  lastName,
		"updated_at": time.Now().UTC(),
	}}, opts).Decode(&m)
	if err != nil {
		return models.Member{}, err
	}
	return m, nil
}
