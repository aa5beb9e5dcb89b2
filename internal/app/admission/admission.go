// Package admission handles members identifying themselves and asking to
// join a promo, and operators deciding on those requests.
package admission

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/auditlog"
	"github.com/dalemusser/promohub/internal/app/system/keylock"
	"github.com/dalemusser/promohub/internal/app/system/normalize"
	"github.com/dalemusser/promohub/internal/app/workspace"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
)

// MaxNameLength bounds first and last names.
const MaxNameLength = 50

// Config names the guild objects the workflow uses.
type Config struct {
	// RequestsChannelID is the operations channel where each request gets
	// its own thread.
	RequestsChannelID string
	// LearnerRoleID is given to identified and accepted members. Optional.
	LearnerRoleID string
}

// Workflow implements identification and admission.
type Workflow struct {
	rc    resource.Client
	ws    *workspace.Provider
	p     platform.Platform
	cfg   Config
	audit *auditlog.Logger
	// decisions orders Decide calls on the same identification.
	decisions *keylock.Locks
	log       *zap.Logger
}

// New creates a Workflow.
func New(rc resource.Client, ws *workspace.Provider, p platform.Platform, cfg Config, audit *auditlog.Logger, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{rc: rc, ws: ws, p: p, cfg: cfg, audit: audit, decisions: keylock.New(), log: logger}
}

// Names is a first/last name pair typed by a member.
type Names struct {
	FirstName string
	LastName  string
}

// clean normalizes and validates the pair.
func (n Names) clean() (Names, error) {
	out := Names{FirstName: normalize.Name(n.FirstName), LastName: normalize.Name(n.LastName)}
	if out.FirstName == "" || out.LastName == "" {
		return Names{}, apperr.Validation("Le prénom et le nom sont obligatoires.")
	}
	if utf8.RuneCountInString(out.FirstName) > MaxNameLength || utf8.RuneCountInString(out.LastName) > MaxNameLength {
		return Names{}, apperr.Validation(fmt.Sprintf("Le prénom et le nom sont limités à %d caractères.", MaxNameLength))
	}
	return out, nil
}

// Identify registers a member under their real name and sets their guild
// nickname. The nickname and the learner role are best effort.
func (w *Workflow) Identify(ctx context.Context, userID string, names Names) (models.Member, error) {
	names, err := names.clean()
	if err != nil {
		return models.Member{}, err
	}

	m, err := w.rc.CreateMember(ctx, models.Member{ID: userID, FirstName: names.FirstName, LastName: names.LastName})
	if resource.IsAlreadyExists(err) {
		return models.Member{}, apperr.Wrap(apperr.KindConflict,
			"Vous êtes déjà identifié(e). Utilisez « Modifier mon identité ».", err)
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("create member %s: %w", userID, err)
	}

	w.presentMember(ctx, m)
	w.grantLearner(ctx, userID)
	w.audit.MemberIdentified(ctx, userID, true)
	w.log.Info("member identified", zap.String("member_id", userID))
	return m, nil
}

// UpdateIdentity changes a known member's names and nickname.
func (w *Workflow) UpdateIdentity(ctx context.Context, userID string, names Names) (models.Member, error) {
	names, err := names.clean()
	if err != nil {
		return models.Member{}, err
	}

	m, err := w.rc.UpdateMember(ctx, userID, names.FirstName, names.LastName)
	if resource.IsNotFound(err) {
		return models.Member{}, apperr.Wrap(apperr.KindNotFound,
			"Vous n'êtes pas encore identifié(e). Utilisez « M'identifier ».", err)
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("update member %s: %w", userID, err)
	}

	w.presentMember(ctx, m)
	w.audit.MemberIdentityUpdated(ctx, userID)
	w.log.Info("member identity updated", zap.String("member_id", userID))
	return m, nil
}

// Member returns a known member, or a not-found error for the user.
func (w *Workflow) Member(ctx context.Context, userID string) (models.Member, error) {
	m, err := w.rc.GetMember(ctx, userID)
	if resource.IsNotFound(err) {
		return models.Member{}, apperr.Wrap(apperr.KindNotFound,
			"Vous n'êtes pas encore identifié(e). Utilisez « M'identifier ».", err)
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("get member %s: %w", userID, err)
	}
	return m, nil
}

// OpenPromos returns the promos a member can ask to join: the pending ones.
func (w *Workflow) OpenPromos(ctx context.Context) ([]models.Promo, error) {
	promos, err := w.rc.ListPromosByStatus(ctx, models.PromoPending)
	if err != nil {
		return nil, fmt.Errorf("list pending promos: %w", err)
	}
	return promos, nil
}

func (w *Workflow) presentMember(ctx context.Context, m models.Member) {
	if err := w.p.SetNickname(ctx, m.ID, m.DisplayName()); err != nil {
		w.log.Warn("set nickname failed", zap.String("member_id", m.ID), zap.Error(err))
	}
}

func (w *Workflow) grantLearner(ctx context.Context, userID string) bool {
	if w.cfg.LearnerRoleID == "" {
		return true
	}
	if err := w.p.AddMemberRole(ctx, userID, w.cfg.LearnerRoleID); err != nil {
		w.log.Warn("learner role grant failed", zap.String("member_id", userID), zap.Error(err))
		return false
	}
	return true
}
