// Package discord implements platform.Platform on a Discord guild with
// discordgo, and bridges gateway interaction events to the interaction
// handler.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// threadArchiveMinutes is the auto-archive duration of request threads.
const threadArchiveMinutes = 10080

// Config configures the guild session.
type Config struct {
	Token   string
	GuildID string
	Logger  *zap.Logger
}

// Guild is a bot session bound to one guild.
type Guild struct {
	s       *discordgo.Session
	guildID string
	log     *zap.Logger
}

var _ platform.Platform = (*Guild)(nil)

// New creates the session. The gateway is not opened until Open.
func New(cfg Config) (*Guild, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	if cfg.GuildID == "" {
		return nil, errors.New("discord: guild id is required")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guild{s: s, guildID: cfg.GuildID, log: logger}
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.log.Info("discord gateway ready",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
	})
	return g, nil
}

// Open connects to the gateway.
func (g *Guild) Open() error {
	if err := g.s.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (g *Guild) Close() error {
	return g.s.Close()
}

// Ping reports whether the gateway has a live heartbeat.
func (g *Guild) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if g.s.DataReady {
		return nil
	}
	_, err := g.s.Guild(g.guildID, discordgo.WithContext(ctx))
	return mapErr(err)
}

// mapErr turns REST 404 responses into platform.ErrNotFound.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", platform.ErrNotFound, err)
	}
	return err
}

func (g *Guild) EveryoneRoleID() string {
	// The @everyone role shares the guild id.
	return g.guildID
}

func (g *Guild) CreateRole(ctx context.Context, spec platform.RoleSpec) (platform.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	color := spec.Color
	mentionable := spec.Mentionable
	r, err := g.s.GuildRoleCreate(g.guildID, &discordgo.RoleParams{
		Name:        spec.Name,
		Color:       &color,
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Role{}, mapErr(err)
	}
	return platform.Role{ID: r.ID, Name: r.Name}, nil
}

func (g *Guild) DeleteRole(ctx context.Context, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	return mapErr(g.s.GuildRoleDelete(g.guildID, roleID, discordgo.WithContext(ctx)))
}

func (g *Guild) Channel(ctx context.Context, channelID string) (platform.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	ch, err := g.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Channel{}, mapErr(err)
	}
	return fromChannel(ch), nil
}

func (g *Guild) Channels(ctx context.Context) ([]platform.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	chs, err := g.s.GuildChannels(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]platform.Channel, 0, len(chs))
	for _, ch := range chs {
		out = append(out, fromChannel(ch))
	}
	return out, nil
}

func (g *Guild) ChildChannels(ctx context.Context, categoryID string) ([]platform.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	all, err := g.Channels(ctx)
	if err != nil {
		return nil, err
	}
	var out []platform.Channel
	for _, ch := range all {
		if ch.ParentID == categoryID {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (g *Guild) CreateChannel(ctx context.Context, spec platform.ChannelSpec) (platform.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	ch, err := g.s.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 toChannelType(spec.Type),
		Topic:                spec.Topic,
		Position:             spec.Position,
		ParentID:             spec.ParentID,
		PermissionOverwrites: toOverwrites(spec.Overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Channel{}, mapErr(err)
	}
	return fromChannel(ch), nil
}

func (g *Guild) DeleteChannel(ctx context.Context, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	_, err := g.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return mapErr(err)
}

func (g *Guild) SetPermission(ctx context.Context, channelID string, ow platform.Overwrite) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	return mapErr(g.s.ChannelPermissionSet(channelID, ow.RoleID, discordgo.PermissionOverwriteTypeRole,
		toPermissions(ow.Allow), toPermissions(ow.Deny), discordgo.WithContext(ctx)))
}

func (g *Guild) AddMemberRole(ctx context.Context, userID, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	return mapErr(g.s.GuildMemberRoleAdd(g.guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (g *Guild) RemoveMemberRole(ctx context.Context, userID, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	return mapErr(g.s.GuildMemberRoleRemove(g.guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (g *Guild) SetNickname(ctx context.Context, userID, nickname string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	return mapErr(g.s.GuildMemberNickname(g.guildID, userID, nickname, discordgo.WithContext(ctx)))
}

func (g *Guild) SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	m, err := g.s.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr(err)
	}
	return m.ID, nil
}

func (g *Guild) StartThread(ctx context.Context, channelID, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	th, err := g.s.ThreadStart(channelID, truncate(name, 100), discordgo.ChannelTypeGuildPublicThread,
		threadArchiveMinutes, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr(err)
	}
	return th.ID, nil
}

func (g *Guild) ArchiveThread(ctx context.Context, threadID string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	archived := true
	_, err := g.s.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(ctx))
	return mapErr(err)
}

func (g *Guild) SendDirect(ctx context.Context, userID string, msg platform.Message) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Platform())
	defer cancel()
	dm, err := g.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	_, err = g.s.ChannelMessageSendComplex(dm.ID, toMessageSend(msg), discordgo.WithContext(ctx))
	return mapErr(err)
}
