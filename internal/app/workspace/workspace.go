// Package workspace creates and removes the guild objects that make up a
// promo's private area: an access role, a category cloned from the
// template, and the per-channel permission overwrites.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"
)

// roleColor is the color of promo roles (Discord blurple).
const roleColor = 0x5865F2

// Config names the guild objects every workspace depends on.
type Config struct {
	// TemplateCategoryID is the category whose channels are cloned.
	TemplateCategoryID string
	// FacilitatorRoleID gets moderation rights in every workspace.
	FacilitatorRoleID string
}

// Workspace is what Provision created.
type Workspace struct {
	RoleID     string
	CategoryID string
	ChannelIDs []string
}

// TeardownResult reports what Teardown found and removed.
type TeardownResult struct {
	CategoryFound   bool
	ChannelsDeleted int
}

// Provider builds and removes workspaces.
type Provider struct {
	p   platform.Platform
	cfg Config
	log *zap.Logger
}

// New creates a Provider.
func New(p platform.Platform, cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{p: p, cfg: cfg, log: logger}
}

// RoleName is the access role name for a promo.
func RoleName(promoName string) string { return "Promo " + promoName }

// CategoryName is the workspace category name for a promo.
func CategoryName(promoName string) string { return "🎓 " + promoName }

// IsAnnouncements reports whether a channel is a read-only broadcast
// channel for learners.
func IsAnnouncements(channelName string) bool {
	folded := strings.ToLower(text.Fold(channelName))
	return strings.Contains(folded, "annonce") || strings.Contains(folded, "announce")
}

// Overwrites returns the three-tier overwrites of a workspace channel:
// everyone hidden, the promo role reading and posting, the facilitator
// role moderating. Announcement channels are read-only for the promo role.
func Overwrites(everyoneID, promoRoleID, facilitatorID string, ch platform.Channel) []platform.Overwrite {
	member := platform.PermView | platform.PermSend | platform.PermReadHistory
	staff := member | platform.PermManageMessages
	if ch.Type == platform.ChannelVoice {
		member |= platform.PermConnect | platform.PermSpeak
		staff |= platform.PermConnect | platform.PermSpeak
	}

	promoOW := platform.Overwrite{RoleID: promoRoleID, Allow: member}
	if IsAnnouncements(ch.Name) {
		promoOW.Allow &^= platform.PermSend
		promoOW.Deny = platform.PermSend
	}

	ows := []platform.Overwrite{
		{RoleID: everyoneID, Deny: platform.PermView},
		promoOW,
	}
	if facilitatorID != "" {
		ows = append(ows, platform.Overwrite{RoleID: facilitatorID, Allow: staff})
	}
	return ows
}

// Provision creates the role, the category and the channels of a promo.
//
// The template is checked before anything is created. When a later step
// fails, what was created is removed again (best effort) and the error is
// returned, so a failed provision leaves no partial workspace behind.
func (pv *Provider) Provision(ctx context.Context, promo models.Promo) (Workspace, error) {
	log := pv.log.With(zap.String("promo_id", promo.ID), zap.String("promo", promo.Name))

	children, err := pv.template(ctx)
	if err != nil {
		return Workspace{}, err
	}

	var ws Workspace
	fail := func(step string, err error) (Workspace, error) {
		log.Error("workspace provision failed", zap.String("step", step), zap.Error(err))
		pv.rollback(ctx, log, ws)
		return Workspace{}, fmt.Errorf("provision %s: %s: %w", promo.Name, step, err)
	}

	role, err := pv.p.CreateRole(ctx, platform.RoleSpec{
		Name:        RoleName(promo.Name),
		Color:       roleColor,
		Mentionable: true,
	})
	if err != nil {
		return fail("create role", err)
	}
	ws.RoleID = role.ID

	everyone := pv.p.EveryoneRoleID()
	cat, err := pv.p.CreateChannel(ctx, platform.ChannelSpec{
		Name: CategoryName(promo.Name),
		Type: platform.ChannelCategory,
		Overwrites: Overwrites(everyone, role.ID, pv.cfg.FacilitatorRoleID,
			platform.Channel{Type: platform.ChannelCategory}),
	})
	if err != nil {
		return fail("create category", err)
	}
	ws.CategoryID = cat.ID

	for _, child := range children {
		if child.Type != platform.ChannelText && child.Type != platform.ChannelVoice {
			continue
		}
		ch, err := pv.p.CreateChannel(ctx, platform.ChannelSpec{
			Name:       child.Name,
			Type:       child.Type,
			ParentID:   cat.ID,
			Position:   child.Position,
			Topic:      child.Topic,
			Overwrites: Overwrites(everyone, role.ID, pv.cfg.FacilitatorRoleID, child),
		})
		if err != nil {
			return fail("create channel "+child.Name, err)
		}
		ws.ChannelIDs = append(ws.ChannelIDs, ch.ID)
	}

	log.Info("workspace provisioned",
		zap.String("role_id", ws.RoleID),
		zap.String("category_id", ws.CategoryID),
		zap.Int("channels", len(ws.ChannelIDs)))
	return ws, nil
}

// template returns the template's children, or a configuration error when
// the template category is missing.
func (pv *Provider) template(ctx context.Context) ([]platform.Channel, error) {
	if pv.cfg.TemplateCategoryID == "" {
		return nil, apperr.Config("Aucune catégorie modèle n'est configurée.")
	}
	tmpl, err := pv.p.Channel(ctx, pv.cfg.TemplateCategoryID)
	if platform.IsNotFound(err) || (err == nil && tmpl.Type != platform.ChannelCategory) {
		return nil, apperr.Wrap(apperr.KindConfig, "La catégorie modèle est introuvable.",
			fmt.Errorf("template category %s: %w", pv.cfg.TemplateCategoryID, platform.ErrNotFound))
	}
	if err != nil {
		return nil, fmt.Errorf("load template category: %w", err)
	}
	children, err := pv.p.ChildChannels(ctx, tmpl.ID)
	if err != nil {
		return nil, fmt.Errorf("list template channels: %w", err)
	}
	return children, nil
}

func (pv *Provider) rollback(ctx context.Context, log *zap.Logger, ws Workspace) {
	for i := len(ws.ChannelIDs) - 1; i >= 0; i-- {
		if err := pv.p.DeleteChannel(ctx, ws.ChannelIDs[i]); err != nil && !platform.IsNotFound(err) {
			log.Warn("rollback: delete channel failed", zap.String("channel_id", ws.ChannelIDs[i]), zap.Error(err))
		}
	}
	if ws.CategoryID != "" {
		if err := pv.p.DeleteChannel(ctx, ws.CategoryID); err != nil && !platform.IsNotFound(err) {
			log.Warn("rollback: delete category failed", zap.String("category_id", ws.CategoryID), zap.Error(err))
		}
	}
	if ws.RoleID != "" {
		if err := pv.DeleteAccessGroup(ctx, ws.RoleID); err != nil {
			log.Warn("rollback: delete role failed", zap.String("role_id", ws.RoleID), zap.Error(err))
		}
	}
}

// Discard removes a workspace returned by Provision, by id. Unlike
// Teardown it never looks categories up by name, so it cannot touch another
// workspace of the same promo.
func (pv *Provider) Discard(ctx context.Context, ws Workspace) {
	pv.rollback(ctx, pv.log.With(zap.String("category_id", ws.CategoryID)), ws)
}

// FindCategory returns the workspace category of a promo. The exact
// workspace name is preferred; otherwise the first category whose name
// contains the promo name matches. The template never matches.
func (pv *Provider) FindCategory(ctx context.Context, promoName string) (platform.Channel, bool, error) {
	chans, err := pv.p.Channels(ctx)
	if err != nil {
		return platform.Channel{}, false, fmt.Errorf("list channels: %w", err)
	}
	want := text.Fold(CategoryName(promoName))
	needle := text.Fold(promoName)

	var loose *platform.Channel
	for i := range chans {
		ch := chans[i]
		if ch.Type != platform.ChannelCategory || ch.ID == pv.cfg.TemplateCategoryID {
			continue
		}
		name := text.Fold(ch.Name)
		if name == want {
			return ch, true, nil
		}
		if loose == nil && needle != "" && strings.Contains(name, needle) {
			loose = &chans[i]
		}
	}
	if loose != nil {
		return *loose, true, nil
	}
	return platform.Channel{}, false, nil
}

// Teardown deletes the promo's channels, then its category. A missing
// category is not an error, and objects already gone count as deleted.
// The category is kept when a channel could not be deleted so a later
// run can finish the job.
func (pv *Provider) Teardown(ctx context.Context, promo models.Promo) (TeardownResult, error) {
	log := pv.log.With(zap.String("promo_id", promo.ID), zap.String("promo", promo.Name))

	cat, found, err := pv.FindCategory(ctx, promo.Name)
	if err != nil {
		return TeardownResult{}, err
	}
	if !found {
		log.Info("workspace category not found, skipping channel teardown")
		return TeardownResult{}, nil
	}

	res := TeardownResult{CategoryFound: true}
	children, err := pv.p.ChildChannels(ctx, cat.ID)
	if err != nil {
		return res, fmt.Errorf("list workspace channels: %w", err)
	}

	var errs []error
	for _, ch := range children {
		if err := pv.p.DeleteChannel(ctx, ch.ID); err != nil && !platform.IsNotFound(err) {
			log.Warn("delete channel failed", zap.String("channel_id", ch.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("delete channel %s: %w", ch.Name, err))
			continue
		}
		res.ChannelsDeleted++
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}

	if err := pv.p.DeleteChannel(ctx, cat.ID); err != nil && !platform.IsNotFound(err) {
		return res, fmt.Errorf("delete category: %w", err)
	}

	log.Info("workspace torn down",
		zap.String("category_id", cat.ID),
		zap.Int("channels", res.ChannelsDeleted))
	return res, nil
}

// DeleteAccessGroup deletes a promo role. An empty or unknown role is a
// no-op.
func (pv *Provider) DeleteAccessGroup(ctx context.Context, roleID string) error {
	if roleID == "" {
		return nil
	}
	if err := pv.p.DeleteRole(ctx, roleID); err != nil && !platform.IsNotFound(err) {
		return fmt.Errorf("delete role %s: %w", roleID, err)
	}
	return nil
}

// Grant gives a member the promo role.
func (pv *Provider) Grant(ctx context.Context, userID, roleID string) error {
	if err := pv.p.AddMemberRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("grant role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

// Revoke removes the promo role from a member. A member or role that no
// longer exists counts as revoked.
func (pv *Provider) Revoke(ctx context.Context, userID, roleID string) error {
	if err := pv.p.RemoveMemberRole(ctx, userID, roleID); err != nil && !platform.IsNotFound(err) {
		return fmt.Errorf("revoke role %s from %s: %w", roleID, userID, err)
	}
	return nil
}
