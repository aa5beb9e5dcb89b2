// Package platform describes the chat-platform operations the bot needs.
//
// Everything above this package works with these types only. The Discord
// adapter lives in platform/discord; tests use the in-memory guild from
// testutil.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a role, channel, member or message does not
// exist on the platform.
var ErrNotFound = errors.New("platform: not found")

// ChannelType is the kind of a guild channel.
type ChannelType int

const (
	ChannelOther ChannelType = iota
	ChannelText
	ChannelVoice
	ChannelCategory
	ChannelThread
)

func (t ChannelType) String() string {
	switch t {
	case ChannelText:
		return "text"
	case ChannelVoice:
		return "voice"
	case ChannelCategory:
		return "category"
	case ChannelThread:
		return "thread"
	}
	return "other"
}

// Permission is a bit set of channel permissions.
type Permission uint64

const (
	PermView Permission = 1 << iota
	PermSend
	PermReadHistory
	PermManageMessages
	PermConnect
	PermSpeak
)

// Has reports whether every bit of q is set in p.
func (p Permission) Has(q Permission) bool { return p&q == q }

// Overwrite grants or denies permissions to a role on one channel.
type Overwrite struct {
	RoleID string
	Allow  Permission
	Deny   Permission
}

// Channel is a guild channel or category.
type Channel struct {
	ID         string
	Name       string
	Type       ChannelType
	ParentID   string
	Position   int
	Topic      string
	Overwrites []Overwrite
}

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	Name       string
	Type       ChannelType
	ParentID   string
	Position   int
	Topic      string
	Overwrites []Overwrite
}

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// RoleSpec describes a role to create.
type RoleSpec struct {
	Name        string
	Color       int
	Mentionable bool
}

// Platform is the set of guild operations the bot performs. All ids are
// platform-native strings. Not-found conditions are reported as ErrNotFound.
type Platform interface {
	// EveryoneRoleID is the id of the role every guild member has.
	EveryoneRoleID() string

	CreateRole(ctx context.Context, spec RoleSpec) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	Channel(ctx context.Context, channelID string) (Channel, error)
	Channels(ctx context.Context) ([]Channel, error)
	// ChildChannels returns the channels under a category in position order.
	ChildChannels(ctx context.Context, categoryID string) ([]Channel, error)
	CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	SetPermission(ctx context.Context, channelID string, ow Overwrite) error

	AddMemberRole(ctx context.Context, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, userID, roleID string) error
	SetNickname(ctx context.Context, userID, nickname string) error

	// SendMessage posts to a channel or thread and returns the message id.
	SendMessage(ctx context.Context, channelID string, msg Message) (string, error)
	// StartThread opens a public thread in a text channel.
	StartThread(ctx context.Context, channelID, name string) (string, error)
	ArchiveThread(ctx context.Context, threadID string) error
	// SendDirect sends a private message to a user.
	SendDirect(ctx context.Context, userID string, msg Message) error
}

// IsNotFound reports whether err means the platform object does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
