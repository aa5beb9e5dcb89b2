package lifecycle

import (
	"context"
	"fmt"

	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
)

// Notifier posts transition notices to the operations channel. Failures
// are logged and never returned: the transition is already committed.
type Notifier struct {
	p         platform.Platform
	channelID string
	log       *zap.Logger
}

// NewNotifier creates a Notifier. An empty channel id disables it.
func NewNotifier(p platform.Platform, channelID string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{p: p, channelID: channelID, log: logger}
}

// Started announces a promo start.
func (n *Notifier) Started(ctx context.Context, promo models.Promo, rep StartReport) {
	msg := platform.Message{Embeds: []platform.Embed{{
		Title:       "🚀 Promo démarrée",
		Description: fmt.Sprintf("La promo **%s** a démarré !", promo.Name),
		Color:       platform.ColorSuccess,
		Fields: []platform.EmbedField{
			{Name: "Salons", Value: fmt.Sprint(rep.Channels), Inline: true},
			{Name: "Membres ajoutés", Value: fmt.Sprint(rep.Granted), Inline: true},
		},
	}}}
	if len(rep.GrantFailures) > 0 {
		msg.Embeds[0].Fields = append(msg.Embeds[0].Fields, platform.EmbedField{
			Name: "⚠️ Échecs d'attribution", Value: fmt.Sprint(len(rep.GrantFailures)), Inline: true,
		})
	}
	n.send(ctx, promo, msg)
}

// Archived announces a promo archive.
func (n *Notifier) Archived(ctx context.Context, promo models.Promo, rep ArchiveReport) {
	n.send(ctx, promo, platform.Message{Embeds: []platform.Embed{{
		Title:       "📦 Promo archivée",
		Description: fmt.Sprintf("La promo **%s** a été archivée.", promo.Name),
		Color:       platform.ColorInfo,
		Fields: []platform.EmbedField{
			{Name: "Salons supprimés", Value: fmt.Sprint(rep.ChannelsDeleted), Inline: true},
			{Name: "Membres retirés", Value: fmt.Sprint(rep.Revoked), Inline: true},
		},
	}}})
}

func (n *Notifier) send(ctx context.Context, promo models.Promo, msg platform.Message) {
	if n == nil || n.channelID == "" {
		return
	}
	if _, err := n.p.SendMessage(ctx, n.channelID, msg); err != nil {
		n.log.Warn("transition notice failed",
			zap.String("promo_id", promo.ID),
			zap.String("channel_id", n.channelID),
			zap.Error(err))
	}
}
