package admission

import (
	"context"
	"fmt"

	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
)

// Soft failure labels, shown to the operator who decided.
const (
	SoftPromoLookup = "lecture de la promo"
	SoftGrant       = "attribution du rôle de la promo"
	SoftLearnerRole = "attribution du rôle apprenant"
	SoftNotify      = "message privé au membre"
	SoftThread      = "fermeture du fil"
)

// DecideRequest is an operator decision on a pending identification.
type DecideRequest struct {
	IdentificationID string
	Accept           bool
	ActorID          string
	// ThreadID is the operations thread of the request, closed afterwards.
	ThreadID string
}

// Decision is the outcome of Decide. The status change is committed;
// SoftFailures lists the follow-up steps that did not go through.
type Decision struct {
	Identification models.Identification
	Promo          models.Promo
	// Granted is true when the promo role was given to the member.
	Granted bool
	// GrantSkipped is true when the promo had no workspace yet. The member
	// gets the role when the promo starts.
	GrantSkipped bool
	SoftFailures []string
}

// Decide accepts or rejects a pending identification. Only the first
// decision on an identification goes through; later ones, here or on
// another instance, fail with a conflict and have no side effects.
//
// The status is written first. On acceptance the promo role is granted
// only when the promo is active and bound to a role. The member is then
// told the outcome and the request thread is closed. Failures after the
// status write do not undo it; they come back as SoftFailures.
func (w *Workflow) Decide(ctx context.Context, req DecideRequest) (Decision, error) {
	log := w.log.With(zap.String("identification_id", req.IdentificationID), zap.String("actor", req.ActorID))

	unlock, err := w.decisions.Lock(ctx, req.IdentificationID)
	if err != nil {
		return Decision{}, fmt.Errorf("wait for identification %s: %w", req.IdentificationID, err)
	}
	defer unlock()

	ident, err := w.rc.GetIdentification(ctx, req.IdentificationID)
	if resource.IsNotFound(err) {
		return Decision{}, apperr.Wrap(apperr.KindNotFound, "Cette demande n'existe plus.", err)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("get identification %s: %w", req.IdentificationID, err)
	}
	if ident.Status.IsTerminal() {
		return Decision{}, apperr.Conflict("Cette demande a déjà été traitée.")
	}

	status := models.IdentificationRejected
	if req.Accept {
		status = models.IdentificationAccepted
	}
	ident, err = w.rc.UpdateIdentificationStatus(ctx, ident.ID, status)
	if resource.IsConflict(err) {
		return Decision{}, apperr.Wrap(apperr.KindConflict, "Cette demande a déjà été traitée.", err)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("set identification %s %s: %w", req.IdentificationID, status, err)
	}
	w.audit.IdentificationDecided(ctx, req.ActorID, ident.MemberID, ident.PromoID, ident.ID, req.Accept)
	log = log.With(zap.String("member_id", ident.MemberID), zap.String("promo_id", ident.PromoID))
	log.Info("identification decided", zap.String("status", string(status)))

	d := Decision{Identification: ident}
	soft := func(label string, err error) {
		log.Warn("admission follow-up failed", zap.String("step", label), zap.Error(err))
		d.SoftFailures = append(d.SoftFailures, label)
	}

	promo, err := w.rc.GetPromo(ctx, ident.PromoID)
	if err != nil {
		soft(SoftPromoLookup, err)
	} else {
		d.Promo = promo
	}

	if req.Accept && err == nil {
		if promo.Status == models.PromoActive && promo.RoleID != "" {
			if gerr := w.ws.Grant(ctx, ident.MemberID, promo.RoleID); gerr != nil {
				soft(SoftGrant, gerr)
			} else {
				d.Granted = true
			}
		} else {
			d.GrantSkipped = true
		}
	}
	if req.Accept && !w.grantLearner(ctx, ident.MemberID) {
		d.SoftFailures = append(d.SoftFailures, SoftLearnerRole)
	}

	if err := w.p.SendDirect(ctx, ident.MemberID, decisionNotice(req.Accept, d.Promo.Name)); err != nil {
		soft(SoftNotify, err)
	}

	if req.ThreadID != "" {
		note := fmt.Sprintf("❌ Demande refusée par <@%s>.", req.ActorID)
		if req.Accept {
			note = fmt.Sprintf("✅ Demande acceptée par <@%s>.", req.ActorID)
		}
		if _, err := w.p.SendMessage(ctx, req.ThreadID, platform.Text(note)); err != nil {
			log.Warn("decision note failed", zap.Error(err))
		}
		if err := w.p.ArchiveThread(ctx, req.ThreadID); err != nil {
			soft(SoftThread, err)
		}
	}

	return d, nil
}

func decisionNotice(accepted bool, promoName string) platform.Message {
	subject := "Votre demande d'inscription"
	if promoName != "" {
		subject = fmt.Sprintf("Votre demande d'inscription à la promo **%s**", promoName)
	}
	if accepted {
		return platform.Message{Embeds: []platform.Embed{{
			Title:       "✅ Inscription acceptée",
			Description: subject + " a été acceptée. Bienvenue !",
			Color:       platform.ColorSuccess,
		}}}
	}
	return platform.Message{Embeds: []platform.Embed{{
		Title:       "❌ Inscription refusée",
		Description: subject + " a été refusée.",
		Color:       platform.ColorDanger,
	}}}
}
