package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dalemusser/promohub/internal/app/features/interactions"
	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/customid"
	"go.uber.org/zap"
)

// HandlerFunc processes one decoded interaction.
type HandlerFunc func(ctx context.Context, ev interactions.Event, r interactions.Responder)

// interactionTimeout bounds the work done for one interaction, including
// any follow-up edit after a deferred response.
const interactionTimeout = 2 * time.Minute

// OnInteraction routes component clicks and modal submissions to h. Events
// with an unknown custom id are logged and dropped. Slash commands and
// autocomplete are ignored.
func (g *Guild) OnInteraction(h HandlerFunc) func() {
	return g.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		ev, ok := g.decode(ic.Interaction)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				g.log.Error("interaction handler panicked",
					zap.Any("panic", rec),
					zap.String("custom_id", ev.Action.String()),
					zap.String("user_id", ev.UserID))
			}
		}()
		h(ctx, ev, &responder{s: s, i: ic.Interaction})
	})
}

func (g *Guild) decode(i *discordgo.Interaction) (interactions.Event, bool) {
	var ev interactions.Event
	var rawID string

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		ev.Kind = interactions.KindComponent
		ev.Values = data.Values
		rawID = data.CustomID
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		ev.Kind = interactions.KindModalSubmit
		ev.Fields = modalFields(data.Components)
		rawID = data.CustomID
	default:
		return ev, false
	}

	action, err := customid.Parse(rawID)
	if err != nil {
		g.log.Warn("dropping interaction with unknown custom id",
			zap.String("custom_id", rawID),
			zap.Error(err))
		return ev, false
	}
	ev.Action = action
	ev.ChannelID = i.ChannelID
	ev.GuildID = i.GuildID

	switch {
	case i.Member != nil && i.Member.User != nil:
		ev.UserID = i.Member.User.ID
		ev.RoleIDs = i.Member.Roles
	case i.User != nil:
		ev.UserID = i.User.ID
	}
	return ev, true
}

// responder answers one Discord interaction. After Defer, Reply edits the
// deferred response instead of creating a new one.
type responder struct {
	s *discordgo.Session
	i *discordgo.Interaction

	mu       sync.Mutex
	deferred bool
}

var _ interactions.Responder = (*responder)(nil)

func flags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (r *responder) Defer(ctx context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deferred {
		return nil
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags(ephemeral)},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.deferred = true
	}
	return err
}

func (r *responder) Reply(ctx context.Context, msg platform.Message, ephemeral bool) error {
	r.mu.Lock()
	deferred := r.deferred
	r.mu.Unlock()

	if deferred {
		embeds := toEmbeds(msg.Embeds)
		comps := toComponents(msg.Components)
		content := msg.Content
		_, err := r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
			Content:    &content,
			Embeds:     &embeds,
			Components: &comps,
		}, discordgo.WithContext(ctx))
		return err
	}
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    msg.Content,
			Embeds:     toEmbeds(msg.Embeds),
			Components: toComponents(msg.Components),
			Flags:      flags(ephemeral),
		},
	}, discordgo.WithContext(ctx))
}

func (r *responder) ShowModal(ctx context.Context, m platform.Modal) error {
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   m.CustomID,
			Title:      truncate(m.Title, 45),
			Components: toModalComponents(m.Inputs),
		},
	}, discordgo.WithContext(ctx))
}

func (r *responder) Update(ctx context.Context, msg platform.Message) error {
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    msg.Content,
			Embeds:     toEmbeds(msg.Embeds),
			Components: toComponents(msg.Components),
		},
	}, discordgo.WithContext(ctx))
}
