// Package lifecycle drives promos through pending → active → archived.
//
// The Orchestrator performs one transition with its workspace side
// effects; the Scheduler selects the promos that are due and runs them
// one after the other.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/auditlog"
	"github.com/dalemusser/promohub/internal/app/system/keylock"
	"github.com/dalemusser/promohub/internal/app/system/selection"
	"github.com/dalemusser/promohub/internal/app/workspace"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
)

type actorKey struct{}

// WithActor records who triggers the transitions run with ctx. Without it
// the scheduler is recorded.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func actorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return auditlog.SchedulerActor
}

// StartReport describes a completed start.
type StartReport struct {
	PromoID    string `json:"promo_id"`
	RoleID     string `json:"role_id"`
	CategoryID string `json:"category_id"`
	Channels   int    `json:"channels"`
	Granted    int    `json:"granted"`
	// GrantFailures lists members whose role grant failed.
	GrantFailures []string `json:"grant_failures,omitempty"`
}

// ArchiveReport describes a completed archive.
type ArchiveReport struct {
	PromoID         string `json:"promo_id"`
	CategoryFound   bool   `json:"category_found"`
	ChannelsDeleted int    `json:"channels_deleted"`
	RoleDeleted     bool   `json:"role_deleted"`
	Revoked         int    `json:"revoked"`
	// RevokeFailures lists members whose role revocation failed.
	RevokeFailures []string `json:"revoke_failures,omitempty"`
}

// Orchestrator performs promo transitions. Transitions of the same promo
// run one at a time; the status write is conditional on the status read
// at the start, so a transition that lost a race elsewhere fails.
type Orchestrator struct {
	rc    resource.Client
	ws    *workspace.Provider
	sel   *selection.Cache
	audit *auditlog.Logger
	locks *keylock.Locks
	log   *zap.Logger
}

// NewOrchestrator creates an Orchestrator. sel may be nil when promos are
// never created interactively.
func NewOrchestrator(rc resource.Client, ws *workspace.Provider, sel *selection.Cache, audit *auditlog.Logger, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{rc: rc, ws: ws, sel: sel, audit: audit, locks: keylock.New(), log: logger}
}

// lock holds the promo until the returned function is called.
func (o *Orchestrator) lock(ctx context.Context, promoID string) (func(), error) {
	unlock, err := o.locks.Lock(ctx, promoID)
	if err != nil {
		return nil, fmt.Errorf("wait for promo %s: %w", promoID, err)
	}
	return unlock, nil
}

// statusWriteErr maps a lost conditional write to a transition error.
func statusWriteErr(promoID string, target models.PromoStatus, err error) error {
	if resource.IsConflict(err) {
		return apperr.Wrap(apperr.KindTransition, "Cette promo a changé d'état entre-temps.", err)
	}
	return fmt.Errorf("mark promo %s %s: %w", promoID, target, err)
}

// current re-reads the promo so status and membership are fresh.
func (o *Orchestrator) current(ctx context.Context, promo models.Promo) (models.Promo, error) {
	fresh, err := o.rc.GetPromo(ctx, promo.ID)
	if resource.IsNotFound(err) {
		return models.Promo{}, apperr.Wrap(apperr.KindNotFound, "Cette promo n'existe plus.", err)
	}
	if err != nil {
		return models.Promo{}, fmt.Errorf("reload promo %s: %w", promo.ID, err)
	}
	return fresh, nil
}

// StartPromo provisions the workspace of a pending promo, grants it to
// the members already accepted, then marks the promo active.
//
// The active status is written only once the workspace exists. Grant
// failures are reported but do not block the transition. When the status
// write itself fails the workspace is removed again so the next run starts
// from scratch.
func (o *Orchestrator) StartPromo(ctx context.Context, promo models.Promo) (StartReport, error) {
	actor := actorFrom(ctx)
	log := o.log.With(zap.String("promo_id", promo.ID), zap.String("actor", actor))

	unlock, err := o.lock(ctx, promo.ID)
	if err != nil {
		return StartReport{}, err
	}
	defer unlock()

	promo, err = o.current(ctx, promo)
	if err != nil {
		return StartReport{}, err
	}
	log = log.With(zap.String("promo", promo.Name))

	if !promo.Status.CanTransitionTo(models.PromoActive) {
		return StartReport{}, apperr.Wrap(apperr.KindTransition, "Cette promo ne peut pas être démarrée.",
			fmt.Errorf("promo %s is %s", promo.ID, promo.Status))
	}

	ws, err := o.ws.Provision(ctx, promo)
	if err != nil {
		o.audit.PromoStartFailed(ctx, actor, promo.ID, err)
		return StartReport{}, err
	}

	rep := StartReport{
		PromoID:    promo.ID,
		RoleID:     ws.RoleID,
		CategoryID: ws.CategoryID,
		Channels:   len(ws.ChannelIDs),
	}
	for _, memberID := range promo.AcceptedMemberIDs() {
		if err := o.ws.Grant(ctx, memberID, ws.RoleID); err != nil {
			log.Warn("grant failed", zap.String("member_id", memberID), zap.Error(err))
			rep.GrantFailures = append(rep.GrantFailures, memberID)
			continue
		}
		rep.Granted++
	}

	active := models.PromoActive
	upd := models.PromoUpdate{Status: &active, RoleID: &ws.RoleID, ExpectStatus: &promo.Status}
	if _, err := o.rc.UpdatePromo(ctx, promo.ID, upd); err != nil {
		log.Error("status write failed, removing workspace", zap.Error(err))
		o.ws.Discard(ctx, ws)
		err = statusWriteErr(promo.ID, active, err)
		o.audit.PromoStartFailed(ctx, actor, promo.ID, err)
		return StartReport{}, err
	}

	o.audit.PromoStarted(ctx, actor, promo.ID, ws.RoleID, rep.Granted, len(rep.GrantFailures))
	log.Info("promo started",
		zap.String("role_id", rep.RoleID),
		zap.Int("channels", rep.Channels),
		zap.Int("granted", rep.Granted),
		zap.Int("grant_failures", len(rep.GrantFailures)))
	return rep, nil
}

// ArchivePromo removes the workspace of an active promo, revokes its role
// from every member with an identification, then marks it archived.
//
// A workspace that is already gone is not an error. The archived status
// is written only when the channels and the role were removed.
func (o *Orchestrator) ArchivePromo(ctx context.Context, promo models.Promo) (ArchiveReport, error) {
	actor := actorFrom(ctx)
	log := o.log.With(zap.String("promo_id", promo.ID), zap.String("actor", actor))

	unlock, err := o.lock(ctx, promo.ID)
	if err != nil {
		return ArchiveReport{}, err
	}
	defer unlock()

	promo, err = o.current(ctx, promo)
	if err != nil {
		return ArchiveReport{}, err
	}
	log = log.With(zap.String("promo", promo.Name))

	if !promo.Status.CanTransitionTo(models.PromoArchived) {
		return ArchiveReport{}, apperr.Wrap(apperr.KindTransition, "Cette promo ne peut pas être archivée.",
			fmt.Errorf("promo %s is %s", promo.ID, promo.Status))
	}

	res, err := o.ws.Teardown(ctx, promo)
	if err != nil {
		o.audit.PromoArchiveFailed(ctx, actor, promo.ID, err)
		return ArchiveReport{}, fmt.Errorf("teardown %s: %w", promo.Name, err)
	}
	rep := ArchiveReport{
		PromoID:         promo.ID,
		CategoryFound:   res.CategoryFound,
		ChannelsDeleted: res.ChannelsDeleted,
	}

	if promo.RoleID != "" {
		if err := o.ws.DeleteAccessGroup(ctx, promo.RoleID); err != nil {
			o.audit.PromoArchiveFailed(ctx, actor, promo.ID, err)
			return ArchiveReport{}, err
		}
		rep.RoleDeleted = true

		for _, memberID := range promo.AllMemberIDs() {
			if err := o.ws.Revoke(ctx, memberID, promo.RoleID); err != nil {
				log.Warn("revoke failed", zap.String("member_id", memberID), zap.Error(err))
				rep.RevokeFailures = append(rep.RevokeFailures, memberID)
				continue
			}
			rep.Revoked++
		}
	}

	archived := models.PromoArchived
	if _, err := o.rc.UpdatePromo(ctx, promo.ID, models.PromoUpdate{Status: &archived, ExpectStatus: &promo.Status}); err != nil {
		err = statusWriteErr(promo.ID, archived, err)
		o.audit.PromoArchiveFailed(ctx, actor, promo.ID, err)
		return ArchiveReport{}, err
	}

	o.audit.PromoArchived(ctx, actor, promo.ID, rep.Revoked)
	log.Info("promo archived",
		zap.Bool("category_found", rep.CategoryFound),
		zap.Int("channels_deleted", rep.ChannelsDeleted),
		zap.Int("revoked", rep.Revoked))
	return rep, nil
}
