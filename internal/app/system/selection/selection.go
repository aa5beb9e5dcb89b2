// Package selection holds the short-lived choices a user makes before
// submitting the promo creation form (program, then site).
//
// Sessions are keyed by the initiating user. Starting a new session
// replaces the previous one. A session expires after the configured TTL;
// an expired session behaves exactly like a missing one.
package selection

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a selection session stays alive.
const DefaultTTL = 5 * time.Minute

// Choice is the program and site chosen by one user.
type Choice struct {
	ProgramID string
	SiteID    string
}

// Complete reports whether both steps were recorded.
func (c Choice) Complete() bool {
	return c.ProgramID != "" && c.SiteID != ""
}

type session struct {
	choice    Choice
	expiresAt time.Time
	gen       uint64
	timer     clockwork.Timer
}

// Cache is an in-memory selection store. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	ttl      time.Duration
	sessions map[string]*session
	gen      uint64
}

// New creates a cache. A nil clock uses the real clock; ttl <= 0 uses DefaultTTL.
func New(clock clockwork.Clock, ttl time.Duration) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[string]*session),
	}
}

// TTL returns the session lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Start opens an empty session for the user, replacing any existing one.
func (c *Cache) Start(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.sessions[userID]; ok && old.timer != nil {
		old.timer.Stop()
	}

	c.gen++
	gen := c.gen
	s := &session{
		expiresAt: c.clock.Now().Add(c.ttl),
		gen:       gen,
	}
	s.timer = c.clock.AfterFunc(c.ttl, func() { c.expire(userID, gen) })
	c.sessions[userID] = s
}

// RecordProgram stores the program choice. It returns false when the user
// has no live session.
func (c *Cache) RecordProgram(userID, programID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.live(userID)
	if s == nil {
		return false
	}
	s.choice.ProgramID = programID
	return true
}

// RecordSite stores the site choice. It returns false when the user has no
// live session.
func (c *Cache) RecordSite(userID, siteID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.live(userID)
	if s == nil {
		return false
	}
	s.choice.SiteID = siteID
	return true
}

// Peek returns the current choice without removing it.
func (c *Cache) Peek(userID string) (Choice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.live(userID)
	if s == nil {
		return Choice{}, false
	}
	return s.choice, true
}

// Consume returns the user's choice and removes the session. The second
// call, or a call after expiry, reports false.
func (c *Cache) Consume(userID string) (Choice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.live(userID)
	if s == nil {
		return Choice{}, false
	}
	c.remove(userID, s)
	return s.choice, true
}

// Sweep removes every expired session and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	n := 0
	for id, s := range c.sessions {
		if !now.Before(s.expiresAt) {
			c.remove(id, s)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// live returns the user's session if it exists and has not expired.
// Expired sessions are removed on the way. Caller holds mu.
func (c *Cache) live(userID string) *session {
	s, ok := c.sessions[userID]
	if !ok {
		return nil
	}
	if !c.clock.Now().Before(s.expiresAt) {
		c.remove(userID, s)
		return nil
	}
	return s
}

func (c *Cache) remove(userID string, s *session) {
	if s.timer != nil {
		s.timer.Stop()
	}
	delete(c.sessions, userID)
}

// expire runs from the session timer. A timer belonging to a replaced
// session finds a different generation and does nothing.
func (c *Cache) expire(userID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[userID]; ok && s.gen == gen {
		delete(c.sessions, userID)
	}
}
