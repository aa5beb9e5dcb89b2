// internal/app/store/catalog/catalogstore.go
package catalogstore

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

// Store holds the reference lists a promo is built from: programs and sites.
type Store struct {
	programs *mongo.Collection
	sites    *mongo.Collection
}

var (
	ErrDuplicateProgram = errors.New("a program with this name already exists")
	ErrDuplicateSite    = errors.New("a site with this name already exists")
)

func New(db *mongo.Database) *Store {
	return &Store{
		programs: db.Collection("programs"),
		sites:    db.Collection("sites"),
	}
}

var byName = options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})

// CreateProgram inserts a program. New programs are active.
func (s *Store) CreateProgram(ctx context.Context, name string) (models.Program, error) {
	now := time.Now().UTC()
	p := models.Program{
		ID:        uuid.NewString(),
		Name:      name,
		NameCI:    text.Fold(name),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.programs.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Program{}, ErrDuplicateProgram
		}
		return models.Program{}, err
	}
	return p, nil
}

// ListActivePrograms returns active programs ordered by name.
func (s *Store) ListActivePrograms(ctx context.Context) ([]models.Program, error) {
	cur, err := s.programs.Find(ctx, bson.M{"active": true}, byName)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Program
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetProgramActive toggles whether a program is offered in the selection.
func (s *Store) SetProgramActive(ctx context.Context, id string, active bool) error {
	return setActive(ctx, s.programs, id, active)
}

// CreateSite inserts a site. New sites are active.
func (s *Store) CreateSite(ctx context.Context, name string) (models.Site, error) {
	now := time.Now().UTC()
	site := models.Site{
		ID:        uuid.NewString(),
		Name:      name,
		NameCI:    text.Fold(name),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.sites.InsertOne(ctx, site); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Site{}, ErrDuplicateSite
		}
		return models.Site{}, err
	}
	return site, nil
}

func (s *Store) GetSite(ctx context.Context, id string) (models.Site, error) {
	var site models.Site
	if err := s.sites.FindOne(ctx, bson.M{"_id": id}).Decode(&site); err != nil {
		return models.Site{}, err
	}
	return site, nil
}

// ListActiveSites returns active sites ordered by name.
func (s *Store) ListActiveSites(ctx context.Context) ([]models.Site, error) {
	cur, err := s.sites.Find(ctx, bson.M{"active": true}, byName)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Site
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetSiteActive toggles whether a site is offered in the selection.
func (s *Store) SetSiteActive(ctx context.Context, id string, active bool) error {
	return setActive(ctx, s.sites, id, active)
}

func setActive(ctx context.Context, c *mongo.Collection, id string, active bool) error {
	res, err := c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"active":     active,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
