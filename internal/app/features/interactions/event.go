package interactions

import (
	"context"

	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/customid"
)

// EventKind tells a component click from a modal submission.
type EventKind int

const (
	KindComponent EventKind = iota
	KindModalSubmit
)

// Event is a decoded user interaction. The custom id has already been
// parsed into Action by the platform adapter.
type Event struct {
	Kind      EventKind
	Action    customid.Action
	UserID    string
	ChannelID string
	GuildID   string
	// RoleIDs are the guild roles of the user who interacted.
	RoleIDs []string
	// Values holds the chosen options of a select.
	Values []string
	// Fields holds modal inputs keyed by input id.
	Fields map[string]string
}

// Value returns the first selected option, or "".
func (e Event) Value() string {
	if len(e.Values) == 0 {
		return ""
	}
	return e.Values[0]
}

// Field returns a modal input value, or "".
func (e Event) Field(id string) string {
	return e.Fields[id]
}

// HasRole reports whether the user holds the role.
func (e Event) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, r := range e.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

// Responder answers one interaction. Reply may follow Defer; the adapter
// turns it into an edit of the deferred response.
type Responder interface {
	Defer(ctx context.Context, ephemeral bool) error
	Reply(ctx context.Context, msg platform.Message, ephemeral bool) error
	ShowModal(ctx context.Context, modal platform.Modal) error
	// Update replaces the message the clicked component belongs to.
	Update(ctx context.Context, msg platform.Message) error
}
