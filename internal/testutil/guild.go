package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/promohub/internal/app/platform"
)

// SentMessage is a message recorded by Guild.
type SentMessage struct {
	ID        string
	ChannelID string
	Message   platform.Message
}

// Guild is an in-memory platform.Platform. It records every call so tests
// can assert on what was created, granted and posted, and it can be told
// to fail a given operation.
type Guild struct {
	mu sync.Mutex

	id     string
	nextID int

	roles       map[string]platform.Role
	channels    map[string]platform.Channel
	threads     map[string]platform.Channel
	archived    map[string]bool
	memberRoles map[string]map[string]bool
	nicknames   map[string]string
	messages    []SentMessage
	directs     []SentMessage

	calls    map[string]int
	failOp   map[string]error
	failCall map[string]error
	slow     map[string]time.Duration
}

// NewGuild returns an empty guild.
func NewGuild() *Guild {
	return &Guild{
		id:          "guild-1",
		roles:       make(map[string]platform.Role),
		channels:    make(map[string]platform.Channel),
		threads:     make(map[string]platform.Channel),
		archived:    make(map[string]bool),
		memberRoles: make(map[string]map[string]bool),
		nicknames:   make(map[string]string),
		calls:       make(map[string]int),
		failOp:      make(map[string]error),
		failCall:    make(map[string]error),
		slow:        make(map[string]time.Duration),
	}
}

// FailOn makes every call to op return err. A nil err clears it.
func (g *Guild) FailOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failOp, op)
		return
	}
	g.failOp[op] = err
}

// FailOnArg makes calls to op whose first id argument is arg return err.
func (g *Guild) FailOnArg(op, arg string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCall[op+":"+arg] = err
}

// Slow makes every call to op wait d before it runs, widening the window
// in which concurrent callers overlap.
func (g *Guild) Slow(op string, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.slow[op] = d
}

func (g *Guild) wait(op string) {
	g.mu.Lock()
	d := g.slow[op]
	g.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

// Calls returns how many times op was invoked.
func (g *Guild) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// called counts the call and returns the injected failure, if any.
// Callers hold g.mu.
func (g *Guild) called(op, arg string) error {
	g.calls[op]++
	if err, ok := g.failCall[op+":"+arg]; ok {
		return err
	}
	return g.failOp[op]
}

func (g *Guild) newID(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s-%d", prefix, g.nextID)
}

// AddCategory creates a category with the given children directly,
// without counting calls. It returns the category id.
func (g *Guild) AddCategory(name string, children ...platform.ChannelSpec) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	cat := platform.Channel{ID: g.newID("chan"), Name: name, Type: platform.ChannelCategory}
	g.channels[cat.ID] = cat
	for i, spec := range children {
		ch := platform.Channel{
			ID:       g.newID("chan"),
			Name:     spec.Name,
			Type:     spec.Type,
			ParentID: cat.ID,
			Position: i,
			Topic:    spec.Topic,
		}
		g.channels[ch.ID] = ch
	}
	return cat.ID
}

// AddTextChannel creates a standalone text channel and returns its id.
func (g *Guild) AddTextChannel(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := platform.Channel{ID: g.newID("chan"), Name: name, Type: platform.ChannelText}
	g.channels[ch.ID] = ch
	return ch.ID
}

// AddRole creates a role directly and returns its id.
func (g *Guild) AddRole(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := platform.Role{ID: g.newID("role"), Name: name}
	g.roles[r.ID] = r
	return r.ID
}

// RoleByName returns the role with the exact name.
func (g *Guild) RoleByName(name string) (platform.Role, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.roles {
		if r.Name == name {
			return r, true
		}
	}
	return platform.Role{}, false
}

// HasRoleID reports whether the role exists.
func (g *Guild) HasRoleID(roleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.roles[roleID]
	return ok
}

// ChannelByName returns the first channel with the exact name, threads
// excluded.
func (g *Guild) ChannelByName(name string) (platform.Channel, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.sortedLocked() {
		if ch.Name == name {
			return ch, true
		}
	}
	return platform.Channel{}, false
}

// MemberHasRole reports whether the user holds the role.
func (g *Guild) MemberHasRole(userID, roleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.memberRoles[userID][roleID]
}

// GiveRole grants a role directly, without counting calls.
func (g *Guild) GiveRole(userID, roleID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grantLocked(userID, roleID)
}

// Nickname returns the nickname set for the user.
func (g *Guild) Nickname(userID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nicknames[userID]
}

// Messages returns the messages posted to a channel or thread.
func (g *Guild) Messages(channelID string) []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []SentMessage
	for _, m := range g.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

// Directs returns the private messages sent to a user.
func (g *Guild) Directs(userID string) []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []SentMessage
	for _, m := range g.directs {
		if m.ChannelID == userID {
			out = append(out, m)
		}
	}
	return out
}

// Threads returns the threads opened under a channel.
func (g *Guild) Threads(parentID string) []platform.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []platform.Channel
	for _, th := range g.threads {
		if th.ParentID == parentID {
			out = append(out, th)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ThreadArchived reports whether the thread was archived.
func (g *Guild) ThreadArchived(threadID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.archived[threadID]
}

func (g *Guild) sortedLocked() []platform.Channel {
	out := make([]platform.Channel, 0, len(g.channels))
	for _, ch := range g.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (g *Guild) grantLocked(userID, roleID string) {
	set := g.memberRoles[userID]
	if set == nil {
		set = make(map[string]bool)
		g.memberRoles[userID] = set
	}
	set[roleID] = true
}

// EveryoneRoleID implements platform.Platform.
func (g *Guild) EveryoneRoleID() string { return g.id }

// CreateRole implements platform.Platform.
func (g *Guild) CreateRole(_ context.Context, spec platform.RoleSpec) (platform.Role, error) {
	g.wait("CreateRole")
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("CreateRole", spec.Name); err != nil {
		return platform.Role{}, err
	}
	r := platform.Role{ID: g.newID("role"), Name: spec.Name}
	g.roles[r.ID] = r
	return r, nil
}

// DeleteRole implements platform.Platform.
func (g *Guild) DeleteRole(_ context.Context, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("DeleteRole", roleID); err != nil {
		return err
	}
	if _, ok := g.roles[roleID]; !ok {
		return platform.ErrNotFound
	}
	delete(g.roles, roleID)
	for _, set := range g.memberRoles {
		delete(set, roleID)
	}
	return nil
}

// Channel implements platform.Platform.
func (g *Guild) Channel(_ context.Context, channelID string) (platform.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("Channel", channelID); err != nil {
		return platform.Channel{}, err
	}
	if ch, ok := g.channels[channelID]; ok {
		return ch, nil
	}
	if th, ok := g.threads[channelID]; ok {
		return th, nil
	}
	return platform.Channel{}, platform.ErrNotFound
}

// Channels implements platform.Platform.
func (g *Guild) Channels(_ context.Context) ([]platform.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("Channels", ""); err != nil {
		return nil, err
	}
	return g.sortedLocked(), nil
}

// ChildChannels implements platform.Platform.
func (g *Guild) ChildChannels(_ context.Context, categoryID string) ([]platform.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("ChildChannels", categoryID); err != nil {
		return nil, err
	}
	var out []platform.Channel
	for _, ch := range g.sortedLocked() {
		if ch.ParentID == categoryID {
			out = append(out, ch)
		}
	}
	return out, nil
}

// CreateChannel implements platform.Platform.
func (g *Guild) CreateChannel(_ context.Context, spec platform.ChannelSpec) (platform.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("CreateChannel", spec.Name); err != nil {
		return platform.Channel{}, err
	}
	if spec.ParentID != "" {
		if _, ok := g.channels[spec.ParentID]; !ok {
			return platform.Channel{}, platform.ErrNotFound
		}
	}
	ch := platform.Channel{
		ID:         g.newID("chan"),
		Name:       spec.Name,
		Type:       spec.Type,
		ParentID:   spec.ParentID,
		Position:   spec.Position,
		Topic:      spec.Topic,
		Overwrites: append([]platform.Overwrite(nil), spec.Overwrites...),
	}
	g.channels[ch.ID] = ch
	return ch, nil
}

// DeleteChannel implements platform.Platform. Children of a deleted
// category are left in place, as on Discord.
func (g *Guild) DeleteChannel(_ context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("DeleteChannel", channelID); err != nil {
		return err
	}
	if _, ok := g.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(g.channels, channelID)
	return nil
}

// SetPermission implements platform.Platform.
func (g *Guild) SetPermission(_ context.Context, channelID string, ow platform.Overwrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("SetPermission", channelID); err != nil {
		return err
	}
	ch, ok := g.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	replaced := false
	for i := range ch.Overwrites {
		if ch.Overwrites[i].RoleID == ow.RoleID {
			ch.Overwrites[i] = ow
			replaced = true
		}
	}
	if !replaced {
		ch.Overwrites = append(ch.Overwrites, ow)
	}
	g.channels[channelID] = ch
	return nil
}

// AddMemberRole implements platform.Platform.
func (g *Guild) AddMemberRole(_ context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("AddMemberRole", userID); err != nil {
		return err
	}
	if _, ok := g.roles[roleID]; !ok {
		return platform.ErrNotFound
	}
	g.grantLocked(userID, roleID)
	return nil
}

// RemoveMemberRole implements platform.Platform.
func (g *Guild) RemoveMemberRole(_ context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("RemoveMemberRole", userID); err != nil {
		return err
	}
	delete(g.memberRoles[userID], roleID)
	return nil
}

// SetNickname implements platform.Platform.
func (g *Guild) SetNickname(_ context.Context, userID, nickname string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("SetNickname", userID); err != nil {
		return err
	}
	g.nicknames[userID] = nickname
	return nil
}

// SendMessage implements platform.Platform.
func (g *Guild) SendMessage(_ context.Context, channelID string, msg platform.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("SendMessage", channelID); err != nil {
		return "", err
	}
	_, isChannel := g.channels[channelID]
	_, isThread := g.threads[channelID]
	if !isChannel && !isThread {
		return "", platform.ErrNotFound
	}
	m := SentMessage{ID: g.newID("msg"), ChannelID: channelID, Message: msg}
	g.messages = append(g.messages, m)
	return m.ID, nil
}

// StartThread implements platform.Platform.
func (g *Guild) StartThread(_ context.Context, channelID, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("StartThread", channelID); err != nil {
		return "", err
	}
	if _, ok := g.channels[channelID]; !ok {
		return "", platform.ErrNotFound
	}
	th := platform.Channel{ID: g.newID("thread"), Name: name, Type: platform.ChannelThread, ParentID: channelID}
	g.threads[th.ID] = th
	return th.ID, nil
}

// ArchiveThread implements platform.Platform.
func (g *Guild) ArchiveThread(_ context.Context, threadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("ArchiveThread", threadID); err != nil {
		return err
	}
	if _, ok := g.threads[threadID]; !ok {
		return platform.ErrNotFound
	}
	g.archived[threadID] = true
	return nil
}

// SendDirect implements platform.Platform.
func (g *Guild) SendDirect(_ context.Context, userID string, msg platform.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.called("SendDirect", userID); err != nil {
		return err
	}
	g.directs = append(g.directs, SentMessage{ID: g.newID("dm"), ChannelID: userID, Message: msg})
	return nil
}

var _ platform.Platform = (*Guild)(nil)
