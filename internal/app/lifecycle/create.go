package lifecycle

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/normalize"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
)

// DateLayout is the format of dates typed in the creation form.
const DateLayout = "2006-01-02"

// MaxNameLength bounds promo names; role and channel names derive from it.
const MaxNameLength = 80

// PromoForm is the free-text part of the creation flow.
type PromoForm struct {
	Name      string
	StartDate string
	EndDate   string
}

// ParsedForm is a validated PromoForm.
type ParsedForm struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Parse validates the form. Dates are read as UTC days.
func (f PromoForm) Parse() (ParsedForm, error) {
	name := normalize.Name(f.Name)
	if name == "" {
		return ParsedForm{}, apperr.Validation("Le nom de la promo est obligatoire.")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ParsedForm{}, apperr.Validation(fmt.Sprintf("Le nom de la promo dépasse %d caractères.", MaxNameLength))
	}

	start, err := time.Parse(DateLayout, normalize.Date(f.StartDate))
	if err != nil {
		return ParsedForm{}, apperr.Wrap(apperr.KindValidation, "Date de début invalide (format AAAA-MM-JJ).", err)
	}
	end, err := time.Parse(DateLayout, normalize.Date(f.EndDate))
	if err != nil {
		return ParsedForm{}, apperr.Wrap(apperr.KindValidation, "Date de fin invalide (format AAAA-MM-JJ).", err)
	}
	if !end.After(start) {
		return ParsedForm{}, apperr.Validation("La date de fin doit être après la date de début.")
	}
	return ParsedForm{Name: name, StartDate: start, EndDate: end}, nil
}

// CreatePromo validates the form, consumes the initiator's program and
// site selection, and stores a pending promo.
//
// The selection is consumed only once the form is valid, so a typo does
// not force the initiator to pick the program and site again.
func (o *Orchestrator) CreatePromo(ctx context.Context, initiatorID string, form PromoForm) (models.Promo, error) {
	parsed, err := form.Parse()
	if err != nil {
		return models.Promo{}, err
	}

	if o.sel == nil {
		return models.Promo{}, apperr.Expired("⏳ La sélection a expiré. Recommencez la création.")
	}
	choice, ok := o.sel.Consume(initiatorID)
	if !ok || !choice.Complete() {
		return models.Promo{}, apperr.Expired("⏳ La sélection a expiré. Recommencez la création.")
	}

	promo, err := o.rc.CreatePromo(ctx, models.Promo{
		Name:      parsed.Name,
		StartDate: parsed.StartDate,
		EndDate:   parsed.EndDate,
		ProgramID: choice.ProgramID,
		SiteID:    choice.SiteID,
	})
	if resource.IsAlreadyExists(err) {
		return models.Promo{}, apperr.Wrap(apperr.KindConflict, "Une promo porte déjà ce nom.", err)
	}
	if err != nil {
		return models.Promo{}, fmt.Errorf("create promo %q: %w", parsed.Name, err)
	}

	o.audit.PromoCreated(ctx, initiatorID, promo.ID, promo.Name)
	o.log.Info("promo created",
		zap.String("promo_id", promo.ID),
		zap.String("promo", promo.Name),
		zap.String("initiator", initiatorID),
		zap.Time("start_date", promo.StartDate),
		zap.Time("end_date", promo.EndDate))
	return promo, nil
}
