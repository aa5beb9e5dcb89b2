package interactions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/promohub/internal/app/admission"
	"github.com/dalemusser/promohub/internal/app/lifecycle"
	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/customid"
	"github.com/dalemusser/promohub/internal/app/system/selection"
	"go.uber.org/zap"
)

// Config names the panel channels and the role allowed to manage promos.
type Config struct {
	IdentificationChannelID string
	CreatePromoChannelID    string
	InscriptionChannelID    string
	// FacilitatorRoleID gates promo creation and request decisions.
	FacilitatorRoleID string
}

// Handler dispatches interactions to the workflows.
type Handler struct {
	rc   resource.Client
	orch *lifecycle.Orchestrator
	adm  *admission.Workflow
	sel  *selection.Cache
	p    platform.Platform
	cfg  Config
	log  *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(rc resource.Client, orch *lifecycle.Orchestrator, adm *admission.Workflow, sel *selection.Cache, p platform.Platform, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{rc: rc, orch: orch, adm: adm, sel: sel, p: p, cfg: cfg, log: logger}
}

var errNotFacilitator = apperr.New(apperr.KindValidation, "⛔ Cette action est réservée aux formateurs.")

var errSelectionExpired = apperr.Expired("⏳ La sélection a expiré. Recommencez la création.")

// Handle processes one interaction.
func (h *Handler) Handle(ctx context.Context, ev Event, r Responder) {
	var err error
	switch ev.Action.Kind {
	case customid.IdentifyButton:
		err = r.ShowModal(ctx, identityModal(customid.IdentifyModal, "🪪 M'identifier", admission.Names{}))
	case customid.UpdateIdentityButton:
		err = h.openUpdateIdentity(ctx, ev, r)
	case customid.IdentifyModal:
		err = h.identify(ctx, ev, r, false)
	case customid.UpdateIdentityModal:
		err = h.identify(ctx, ev, r, true)

	case customid.CreatePromoButton:
		err = h.startCreation(ctx, ev, r)
	case customid.SelectProgram:
		err = h.chooseProgram(ctx, ev, r)
	case customid.SelectSite:
		err = h.chooseSite(ctx, ev, r)
	case customid.CreatePromoModal:
		err = h.createPromo(ctx, ev, r)

	case customid.InscriptionButton:
		err = h.openInscription(ctx, r)
	case customid.SelectPromo:
		err = h.choosePromo(ctx, ev, r)
	case customid.InscriptionModal:
		err = h.submit(ctx, ev, r)

	case customid.AcceptInscription, customid.RejectInscription:
		err = h.decide(ctx, ev, r)

	default:
		h.log.Warn("unhandled interaction", zap.String("custom_id", ev.Action.String()))
		return
	}

	if err != nil {
		h.fail(ctx, ev, r, err)
	}
}

// fail logs err and answers the user with its short message.
func (h *Handler) fail(ctx context.Context, ev Event, r Responder, err error) {
	fields := []zap.Field{
		zap.String("custom_id", ev.Action.String()),
		zap.String("user_id", ev.UserID),
		zap.Error(err),
	}
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindConfig:
		h.log.Error("interaction failed", fields...)
	default:
		h.log.Info("interaction refused", fields...)
	}
	if rerr := r.Reply(ctx, platform.Text(apperr.UserMessage(err)), true); rerr != nil {
		h.log.Warn("error reply failed", zap.String("user_id", ev.UserID), zap.Error(rerr))
	}
}

func (h *Handler) requireFacilitator(ev Event) error {
	if !ev.HasRole(h.cfg.FacilitatorRoleID) {
		return errNotFacilitator
	}
	return nil
}

func namesFrom(ev Event) admission.Names {
	return admission.Names{FirstName: ev.Field(InputFirstName), LastName: ev.Field(InputLastName)}
}

// --- identity ---

func (h *Handler) openUpdateIdentity(ctx context.Context, ev Event, r Responder) error {
	m, err := h.adm.Member(ctx, ev.UserID)
	if err != nil {
		return err
	}
	return r.ShowModal(ctx, identityModal(customid.UpdateIdentityModal, "✏️ Modifier mon identité",
		admission.Names{FirstName: m.FirstName, LastName: m.LastName}))
}

func (h *Handler) identify(ctx context.Context, ev Event, r Responder, update bool) error {
	if err := r.Defer(ctx, true); err != nil {
		return err
	}
	var err error
	if update {
		_, err = h.adm.UpdateIdentity(ctx, ev.UserID, namesFrom(ev))
	} else {
		_, err = h.adm.Identify(ctx, ev.UserID, namesFrom(ev))
	}
	if err != nil {
		return err
	}
	msg := "✅ Merci, vous êtes identifié(e)."
	if update {
		msg = "✅ Votre identité a été mise à jour."
	}
	return r.Reply(ctx, platform.Text(msg), true)
}

// --- promo creation ---

func (h *Handler) startCreation(ctx context.Context, ev Event, r Responder) error {
	if err := h.requireFacilitator(ev); err != nil {
		return err
	}
	programs, err := h.rc.ListActivePrograms(ctx)
	if err != nil {
		return fmt.Errorf("list programs: %w", err)
	}
	if len(programs) == 0 {
		return r.Reply(ctx, platform.Text("Aucune formation active n'est disponible."), true)
	}
	h.sel.Start(ev.UserID)
	return r.Reply(ctx, programChooser(programs), true)
}

func (h *Handler) chooseProgram(ctx context.Context, ev Event, r Responder) error {
	if err := h.requireFacilitator(ev); err != nil {
		return err
	}
	if !h.sel.RecordProgram(ev.UserID, ev.Value()) {
		return errSelectionExpired
	}
	sites, err := h.rc.ListActiveSites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	if len(sites) == 0 {
		return r.Update(ctx, platform.Text("Aucun campus actif n'est disponible."))
	}
	return r.Update(ctx, siteChooser(sites))
}

func (h *Handler) chooseSite(ctx context.Context, ev Event, r Responder) error {
	if err := h.requireFacilitator(ev); err != nil {
		return err
	}
	if !h.sel.RecordSite(ev.UserID, ev.Value()) {
		return errSelectionExpired
	}
	if choice, ok := h.sel.Peek(ev.UserID); !ok || !choice.Complete() {
		return apperr.Validation("Choisissez d'abord une formation.")
	}
	return r.ShowModal(ctx, createPromoModal())
}

func (h *Handler) createPromo(ctx context.Context, ev Event, r Responder) error {
	if err := h.requireFacilitator(ev); err != nil {
		return err
	}
	if err := r.Defer(ctx, true); err != nil {
		return err
	}
	promo, err := h.orch.CreatePromo(ctx, ev.UserID, lifecycle.PromoForm{
		Name:      ev.Field(InputName),
		StartDate: ev.Field(InputStartDate),
		EndDate:   ev.Field(InputEndDate),
	})
	if err != nil {
		return err
	}
	return r.Reply(ctx, platform.Text(fmt.Sprintf(
		"✅ La promo **%s** a été créée. Elle démarrera le %s et se terminera le %s.",
		promo.Name, promo.StartDate.Format(displayDate), promo.EndDate.Format(displayDate))), true)
}

// --- inscription ---

func (h *Handler) openInscription(ctx context.Context, r Responder) error {
	promos, err := h.adm.OpenPromos(ctx)
	if err != nil {
		return err
	}
	if len(promos) == 0 {
		return r.Reply(ctx, platform.Text("Aucune promo n'est ouverte aux inscriptions pour le moment."), true)
	}
	return r.Reply(ctx, promoChooser(promos), true)
}

func (h *Handler) choosePromo(ctx context.Context, ev Event, r Responder) error {
	promo, err := h.rc.GetPromo(ctx, ev.Value())
	if resource.IsNotFound(err) {
		return apperr.Wrap(apperr.KindNotFound, "Cette promo n'existe plus.", err)
	}
	if err != nil {
		return fmt.Errorf("get promo: %w", err)
	}
	customID, err := customid.WithRef(customid.InscriptionModal, promo.ID).Encode()
	if err != nil {
		return err
	}

	var names admission.Names
	if m, err := h.rc.GetMember(ctx, ev.UserID); err == nil {
		names = admission.Names{FirstName: m.FirstName, LastName: m.LastName}
	}
	return r.ShowModal(ctx, inscriptionModal(customID, promo.Name, names))
}

func (h *Handler) submit(ctx context.Context, ev Event, r Responder) error {
	if ev.Action.Ref == "" {
		return apperr.NotFound("Cette promo n'existe plus.")
	}
	if err := r.Defer(ctx, true); err != nil {
		return err
	}
	sub, err := h.adm.Submit(ctx, admission.SubmitRequest{
		MemberID: ev.UserID,
		PromoID:  ev.Action.Ref,
		Names:    namesFrom(ev),
	})
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("📨 Votre demande d'inscription à la promo **%s** a été envoyée. Vous serez prévenu(e) par message privé.", sub.Promo.Name)
	if !sub.Posted {
		msg = fmt.Sprintf("⚠️ Votre demande pour la promo **%s** est enregistrée, mais l'équipe n'a pas pu être prévenue. Contactez un formateur.", sub.Promo.Name)
	}
	return r.Reply(ctx, platform.Text(msg), true)
}

// --- decisions ---

func (h *Handler) decide(ctx context.Context, ev Event, r Responder) error {
	if err := h.requireFacilitator(ev); err != nil {
		return err
	}
	if ev.Action.Ref == "" {
		return apperr.NotFound("Cette demande n'existe plus.")
	}
	if err := r.Defer(ctx, true); err != nil {
		return err
	}

	accept := ev.Action.Kind == customid.AcceptInscription
	d, err := h.adm.Decide(ctx, admission.DecideRequest{
		IdentificationID: ev.Action.Ref,
		Accept:           accept,
		ActorID:          ev.UserID,
		ThreadID:         ev.ChannelID,
	})
	if err != nil {
		return err
	}
	return r.Reply(ctx, platform.Text(decisionSummary(d, accept)), true)
}

func decisionSummary(d admission.Decision, accepted bool) string {
	var b strings.Builder
	member := "<@" + d.Identification.MemberID + ">"
	if accepted {
		fmt.Fprintf(&b, "✅ Demande de %s acceptée.", member)
		switch {
		case d.Granted:
			b.WriteString(" Le rôle de la promo a été attribué.")
		case d.GrantSkipped:
			b.WriteString(" La promo n'a pas encore démarré : le rôle sera attribué au démarrage.")
		}
	} else {
		fmt.Fprintf(&b, "❌ Demande de %s refusée.", member)
	}
	if len(d.SoftFailures) > 0 {
		b.WriteString("\n⚠️ Étapes non abouties : ")
		b.WriteString(strings.Join(d.SoftFailures, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// PostPanels posts the entry buttons to the configured channels. Channels
// left empty are skipped. Every panel is attempted.
func (h *Handler) PostPanels(ctx context.Context) error {
	panels := []struct {
		name      string
		channelID string
		msg       platform.Message
	}{
		{"identification", h.cfg.IdentificationChannelID, identificationPanel()},
		{"create promo", h.cfg.CreatePromoChannelID, createPromoPanel()},
		{"inscription", h.cfg.InscriptionChannelID, inscriptionPanel()},
	}

	var errs []error
	for _, p := range panels {
		if p.channelID == "" {
			continue
		}
		if _, err := h.p.SendMessage(ctx, p.channelID, p.msg); err != nil {
			errs = append(errs, fmt.Errorf("post %s panel to %s: %w", p.name, p.channelID, err))
			continue
		}
		h.log.Info("panel posted", zap.String("panel", p.name), zap.String("channel_id", p.channelID))
	}
	return errors.Join(errs...)
}
