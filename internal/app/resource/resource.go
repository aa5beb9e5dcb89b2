// Package resource is the facade over the system of record for promos,
// members, identifications and the program/site catalog.
//
// Two backends implement Client: Mongo reads and writes the collections
// directly, REST talks to the HTTP API the records live behind. Callers
// never see which one is in use; both map their failures onto ErrNotFound
// and ErrAlreadyExists.
package resource

import (
	"context"
	"errors"

	"github.com/dalemusser/promohub/internal/domain/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("resource: not found")
	// ErrAlreadyExists is returned when creating a record that already exists.
	ErrAlreadyExists = errors.New("resource: already exists")
	// ErrConflict is returned by a conditional update whose precondition no
	// longer holds.
	ErrConflict = errors.New("resource: record changed")
)

// Client is the system-of-record facade.
//
// Promos returned by the List and Get methods carry their identifications.
type Client interface {
	// ListPromosDueToStart returns pending promos whose start date has come.
	ListPromosDueToStart(ctx context.Context) ([]models.Promo, error)
	// ListPromosDueToArchive returns active promos whose end date has passed.
	ListPromosDueToArchive(ctx context.Context) ([]models.Promo, error)
	ListPromos(ctx context.Context) ([]models.Promo, error)
	ListPromosByStatus(ctx context.Context, status models.PromoStatus) ([]models.Promo, error)
	GetPromo(ctx context.Context, id string) (models.Promo, error)
	// CreatePromo stores a new pending promo. Only Name, StartDate, EndDate,
	// ProgramID and SiteID are read from p.
	CreatePromo(ctx context.Context, p models.Promo) (models.Promo, error)
	// UpdatePromo fails with ErrConflict when upd.ExpectStatus is set and
	// the promo is no longer in that status.
	UpdatePromo(ctx context.Context, id string, upd models.PromoUpdate) (models.Promo, error)

	// CreateMember fails with ErrAlreadyExists when the member is known.
	CreateMember(ctx context.Context, m models.Member) (models.Member, error)
	GetMember(ctx context.Context, id string) (models.Member, error)
	UpdateMember(ctx context.Context, id, firstName, lastName string) (models.Member, error)

	CreateIdentification(ctx context.Context, memberID, promoID string) (models.Identification, error)
	// UpdateIdentificationStatus decides a pending identification. It fails
	// with ErrConflict when the identification was already decided.
	UpdateIdentificationStatus(ctx context.Context, id string, status models.IdentificationStatus) (models.Identification, error)
	GetIdentification(ctx context.Context, id string) (models.Identification, error)

	ListActivePrograms(ctx context.Context) ([]models.Program, error)
	ListActiveSites(ctx context.Context) ([]models.Site, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports whether err means the record already exists.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsConflict reports whether err means a conditional update lost a race.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
