package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/customid"
	"go.uber.org/zap"
)

func TestPermissionsRoundTrip(t *testing.T) {
	p := platform.PermView | platform.PermSend | platform.PermReadHistory
	d := toPermissions(p)
	var want int64 = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
	if d != want {
		t.Errorf("toPermissions: got %b, want %b", d, want)
	}
	if fromPermissions(d) != p {
		t.Errorf("fromPermissions: got %b, want %b", fromPermissions(d), p)
	}
}

func TestFromChannel_KeepsRoleOverwritesOnly(t *testing.T) {
	ch := fromChannel(&discordgo.Channel{
		ID:       "c1",
		Name:     "📢-annonces",
		Type:     discordgo.ChannelTypeGuildNews,
		ParentID: "cat",
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "r1", Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionViewChannel},
			{ID: "u1", Type: discordgo.PermissionOverwriteTypeMember, Deny: discordgo.PermissionViewChannel},
		},
	})
	if ch.Type != platform.ChannelText {
		t.Errorf("announcement channels are text channels, got %v", ch.Type)
	}
	if len(ch.Overwrites) != 1 || ch.Overwrites[0].RoleID != "r1" || !ch.Overwrites[0].Allow.Has(platform.PermView) {
		t.Errorf("overwrites: %+v", ch.Overwrites)
	}
}

func TestToComponents_CapsSelectOptions(t *testing.T) {
	opts := make([]platform.SelectOption, 30)
	for i := range opts {
		opts[i] = platform.SelectOption{Label: "x", Value: "v"}
	}
	rows := toComponents([]platform.Row{platform.SelectRow(platform.Select{CustomID: "select_promo", Options: opts})})
	row := rows[0].(discordgo.ActionsRow)
	sel := row.Components[0].(discordgo.SelectMenu)
	if len(sel.Options) != platform.MaxSelectOptions {
		t.Errorf("options: got %d, want %d", len(sel.Options), platform.MaxSelectOptions)
	}
}

func TestModalFields(t *testing.T) {
	comps := []discordgo.MessageComponent{
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: "user_nom", Value: "Dupont"},
		}},
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: "user_prenom", Value: "Jean"},
		}},
	}
	f := modalFields(comps)
	if f["user_nom"] != "Dupont" || f["user_prenom"] != "Jean" {
		t.Errorf("fields: %v", f)
	}
}

func TestDecode_ModalSubmit(t *testing.T) {
	g := &Guild{guildID: "g", log: zap.NewNop()}
	ev, ok := g.decode(&discordgo.Interaction{
		Type:      discordgo.InteractionModalSubmit,
		ChannelID: "ch",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: []string{"r1"}},
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: "inscription_modal:p1",
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "user_nom", Value: "Dupont"},
				}},
			},
		},
	})
	if !ok {
		t.Fatal("decode rejected a known custom id")
	}
	if ev.Action != customid.WithRef(customid.InscriptionModal, "p1") {
		t.Errorf("action: %+v", ev.Action)
	}
	if ev.UserID != "u1" || !ev.HasRole("r1") || ev.Field("user_nom") != "Dupont" {
		t.Errorf("event: %+v", ev)
	}

	if _, ok := g.decode(&discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{CustomID: "legacy_button_1"},
	}); ok {
		t.Error("unknown custom id should be dropped")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Demande Éléonore", 9); got != "Demande É" {
		t.Errorf("got %q", got)
	}
}
