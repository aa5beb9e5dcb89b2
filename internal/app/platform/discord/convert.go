package discord

import (
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/dalemusser/promohub/internal/app/platform"
)

var permBits = []struct {
	p platform.Permission
	d int64
}{
	{platform.PermView, discordgo.PermissionViewChannel},
	{platform.PermSend, discordgo.PermissionSendMessages},
	{platform.PermReadHistory, discordgo.PermissionReadMessageHistory},
	{platform.PermManageMessages, discordgo.PermissionManageMessages},
	{platform.PermConnect, discordgo.PermissionVoiceConnect},
	{platform.PermSpeak, discordgo.PermissionVoiceSpeak},
}

func toPermissions(p platform.Permission) int64 {
	var out int64
	for _, b := range permBits {
		if p.Has(b.p) {
			out |= b.d
		}
	}
	return out
}

func fromPermissions(d int64) platform.Permission {
	var out platform.Permission
	for _, b := range permBits {
		if d&b.d == b.d {
			out |= b.p
		}
	}
	return out
}

func toChannelType(t platform.ChannelType) discordgo.ChannelType {
	switch t {
	case platform.ChannelVoice:
		return discordgo.ChannelTypeGuildVoice
	case platform.ChannelCategory:
		return discordgo.ChannelTypeGuildCategory
	case platform.ChannelThread:
		return discordgo.ChannelTypeGuildPublicThread
	}
	return discordgo.ChannelTypeGuildText
}

func fromChannelType(t discordgo.ChannelType) platform.ChannelType {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return platform.ChannelText
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return platform.ChannelVoice
	case discordgo.ChannelTypeGuildCategory:
		return platform.ChannelCategory
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		return platform.ChannelThread
	}
	return platform.ChannelOther
}

func fromChannel(ch *discordgo.Channel) platform.Channel {
	out := platform.Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		Type:     fromChannelType(ch.Type),
		ParentID: ch.ParentID,
		Position: ch.Position,
		Topic:    ch.Topic,
	}
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeRole {
			continue
		}
		out.Overwrites = append(out.Overwrites, platform.Overwrite{
			RoleID: ow.ID,
			Allow:  fromPermissions(ow.Allow),
			Deny:   fromPermissions(ow.Deny),
		})
	}
	return out
}

func toOverwrites(ows []platform.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(ows))
	for _, ow := range ows {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.RoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: toPermissions(ow.Allow),
			Deny:  toPermissions(ow.Deny),
		})
	}
	return out
}

func toEmbeds(embeds []platform.Embed) []*discordgo.MessageEmbed {
	if len(embeds) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		out = append(out, me)
	}
	return out
}

func toButtonStyle(s platform.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case platform.ButtonSecondary:
		return discordgo.SecondaryButton
	case platform.ButtonSuccess:
		return discordgo.SuccessButton
	case platform.ButtonDanger:
		return discordgo.DangerButton
	}
	return discordgo.PrimaryButton
}

func toComponents(rows []platform.Row) []discordgo.MessageComponent {
	if len(rows) == 0 {
		return nil
	}
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		var comps []discordgo.MessageComponent
		if row.Select != nil {
			sel := discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    row.Select.CustomID,
				Placeholder: row.Select.Placeholder,
			}
			for i, o := range row.Select.Options {
				if i == platform.MaxSelectOptions {
					break
				}
				sel.Options = append(sel.Options, discordgo.SelectMenuOption{
					Label:       truncate(o.Label, 100),
					Value:       o.Value,
					Description: truncate(o.Description, 100),
				})
			}
			comps = append(comps, sel)
		}
		for _, b := range row.Buttons {
			comps = append(comps, discordgo.Button{
				CustomID: b.CustomID,
				Label:    b.Label,
				Style:    toButtonStyle(b.Style),
			})
		}
		out = append(out, discordgo.ActionsRow{Components: comps})
	}
	return out
}

func toMessageSend(msg platform.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embeds),
		Components: toComponents(msg.Components),
	}
}

func toModalComponents(inputs []platform.TextInput) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(inputs))
	for _, in := range inputs {
		style := discordgo.TextInputShort
		if in.Paragraph {
			style = discordgo.TextInputParagraph
		}
		out = append(out, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    in.ID,
				Label:       in.Label,
				Style:       style,
				Placeholder: in.Placeholder,
				Value:       in.Value,
				Required:    in.Required,
				MinLength:   in.MinLength,
				MaxLength:   in.MaxLength,
			},
		}})
	}
	return out
}

// modalFields collects the text inputs of a submitted modal by input id.
func modalFields(comps []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	var walk func([]discordgo.MessageComponent)
	walk = func(cs []discordgo.MessageComponent) {
		for _, c := range cs {
			switch v := c.(type) {
			case *discordgo.ActionsRow:
				walk(v.Components)
			case discordgo.ActionsRow:
				walk(v.Components)
			case *discordgo.TextInput:
				fields[v.CustomID] = v.Value
			case discordgo.TextInput:
				fields[v.CustomID] = v.Value
			}
		}
	}
	walk(comps)
	return fields
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
