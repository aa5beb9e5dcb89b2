package admission

import (
	"context"
	"fmt"

	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/customid"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
)

// SubmitRequest is a member asking to join a promo.
type SubmitRequest struct {
	MemberID string
	PromoID  string
	Names    Names
}

// Submission is the outcome of Submit.
type Submission struct {
	Identification models.Identification
	Promo          models.Promo
	ThreadID       string
	// Posted is false when the request was stored but operators could not
	// be shown it.
	Posted bool
}

// ThreadName is the name of the operations thread for a request.
func ThreadName(names Names) string {
	return fmt.Sprintf("Demande %s %s", names.LastName, names.FirstName)
}

// Submit stores a pending identification and opens an operations thread
// carrying the accept and reject buttons.
//
// An existing member record is reused. A second live request for the same
// promo is refused.
func (w *Workflow) Submit(ctx context.Context, req SubmitRequest) (Submission, error) {
	names, err := req.Names.clean()
	if err != nil {
		return Submission{}, err
	}
	log := w.log.With(zap.String("member_id", req.MemberID), zap.String("promo_id", req.PromoID))

	promo, err := w.rc.GetPromo(ctx, req.PromoID)
	if resource.IsNotFound(err) {
		return Submission{}, apperr.Wrap(apperr.KindNotFound, "Cette promo n'existe plus.", err)
	}
	if err != nil {
		return Submission{}, fmt.Errorf("get promo %s: %w", req.PromoID, err)
	}
	if promo.Status == models.PromoArchived {
		return Submission{}, apperr.Transition("Cette promo est archivée.")
	}
	for _, ident := range promo.Identifications {
		if ident.MemberID == req.MemberID && ident.Status != models.IdentificationRejected {
			return Submission{}, apperr.Conflict("Vous avez déjà une demande pour cette promo.")
		}
	}

	_, err = w.rc.CreateMember(ctx, models.Member{ID: req.MemberID, FirstName: names.FirstName, LastName: names.LastName})
	if err != nil && !resource.IsAlreadyExists(err) {
		return Submission{}, fmt.Errorf("ensure member %s: %w", req.MemberID, err)
	}

	ident, err := w.rc.CreateIdentification(ctx, req.MemberID, promo.ID)
	if err != nil {
		return Submission{}, fmt.Errorf("create identification: %w", err)
	}
	w.audit.IdentificationSubmitted(ctx, req.MemberID, promo.ID, ident.ID)
	log = log.With(zap.String("identification_id", ident.ID))
	log.Info("identification submitted")

	sub := Submission{Identification: ident, Promo: promo}
	threadID, err := w.postRequest(ctx, ident, promo, names)
	if err != nil {
		log.Error("post admission request failed", zap.Error(err))
		return sub, nil
	}
	sub.ThreadID = threadID
	sub.Posted = true
	return sub, nil
}

func (w *Workflow) postRequest(ctx context.Context, ident models.Identification, promo models.Promo, names Names) (string, error) {
	if w.cfg.RequestsChannelID == "" {
		return "", apperr.Config("Aucun salon de gestion des inscriptions n'est configuré.")
	}
	accept, err := customid.WithRef(customid.AcceptInscription, ident.ID).Encode()
	if err != nil {
		return "", err
	}
	reject, err := customid.WithRef(customid.RejectInscription, ident.ID).Encode()
	if err != nil {
		return "", err
	}

	threadID, err := w.p.StartThread(ctx, w.cfg.RequestsChannelID, ThreadName(names))
	if err != nil {
		return "", fmt.Errorf("start thread: %w", err)
	}
	msg := platform.Message{
		Embeds: []platform.Embed{{
			Title: "📝 Nouvelle demande d'inscription",
			Color: platform.ColorInfo,
			Fields: []platform.EmbedField{
				{Name: "Membre", Value: "<@" + ident.MemberID + ">", Inline: true},
				{Name: "Nom", Value: names.LastName, Inline: true},
				{Name: "Prénom", Value: names.FirstName, Inline: true},
				{Name: "Promo", Value: promo.Name, Inline: true},
				{Name: "Statut de la promo", Value: statusLabel(promo.Status), Inline: true},
			},
			Timestamp: ident.CreatedAt,
		}},
		Components: []platform.Row{platform.ButtonRow(
			platform.Button{CustomID: accept, Label: "✅ Accepter", Style: platform.ButtonSuccess},
			platform.Button{CustomID: reject, Label: "❌ Refuser", Style: platform.ButtonDanger},
		)},
	}
	if _, err := w.p.SendMessage(ctx, threadID, msg); err != nil {
		return threadID, fmt.Errorf("post request: %w", err)
	}
	return threadID, nil
}

func statusLabel(s models.PromoStatus) string {
	switch s {
	case models.PromoPending:
		return "En attente"
	case models.PromoActive:
		return "Active"
	case models.PromoArchived:
		return "Archivée"
	}
	return string(s)
}
