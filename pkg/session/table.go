package session

import (
	"sync"
	"time"
)

// DefaultMaxSessions is the number of concurrent sessions a YubiHSM2 keeps.
const DefaultMaxSessions = 16

// DefaultIdleTimeout is how long a YubiHSM2 keeps a session without traffic.
const DefaultIdleTimeout = 30 * time.Second

// TableConfig configures a Table.
type TableConfig struct {
	// MaxSessions limits the number of concurrent sessions.
	// Default: DefaultMaxSessions.
	MaxSessions int

	// IdleTimeout expires sessions, authenticated or not, that see no
	// traffic for this long.
	// Default: DefaultIdleTimeout.
	IdleTimeout time.Duration

	// Now returns the current time.
	// Default: time.Now.
	Now func() time.Time
}

// Table manages the device-side sessions, keyed by session id.
// It handles session ID allocation, lookup, and lifecycle management.
//
// Session IDs are allocated sequentially, wrapping around at 255. The table
// ensures IDs are unique among live sessions. A session the peer abandons
// is dropped once it has been idle for the idle timeout.
type Table struct {
	sessions    map[uint8]*tableEntry
	maxSessions int
	idleTimeout time.Duration
	now         func() time.Time
	nextID      uint8

	mu sync.Mutex
}

type tableEntry struct {
	session  *Session
	lastUsed time.Time
}

// NewTable creates a new session table.
func NewTable(config TableConfig) *Table {
	t := &Table{
		sessions:    make(map[uint8]*tableEntry),
		maxSessions: config.MaxSessions,
		idleTimeout: config.IdleTimeout,
		now:         config.Now,
	}
	if t.maxSessions <= 0 || t.maxSessions > 256 {
		t.maxSessions = DefaultMaxSessions
	}
	if t.idleTimeout <= 0 {
		t.idleTimeout = DefaultIdleTimeout
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Create allocates a session id and adds a device-side session for cred.
// Returns ErrSessionTableFull if the table is at capacity.
func (t *Table) Create(cred Credential) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.pruneLocked(now)
	if len(t.sessions) >= t.maxSessions {
		return nil, ErrSessionTableFull
	}

	for {
		id := t.nextID
		t.nextID++
		if _, exists := t.sessions[id]; !exists {
			s := NewDevice(cred, id)
			t.sessions[id] = &tableEntry{session: s, lastUsed: now}
			return s, nil
		}
	}
}

// Find looks up a live session by id and marks it as used.
func (t *Table) Find(id uint8) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := t.now()
	if t.expiredLocked(e, now) {
		e.session.Close()
		delete(t.sessions, id)
		return nil, ErrSessionNotFound
	}
	e.lastUsed = now
	return e.session, nil
}

// Remove closes and removes a session.
// No error is returned if the session doesn't exist.
func (t *Table) Remove(id uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.sessions[id]; ok {
		e.session.Close()
		delete(t.sessions, id)
	}
}

// Count returns the number of live sessions.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.now())
	return len(t.sessions)
}

// Clear closes and removes all sessions.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.sessions {
		e.session.Close()
	}
	t.sessions = make(map[uint8]*tableEntry)
}

// pruneLocked drops sessions that closed themselves after a failure and
// sessions idle past the timeout.
func (t *Table) pruneLocked(now time.Time) {
	for id, e := range t.sessions {
		if t.expiredLocked(e, now) {
			e.session.Close()
			delete(t.sessions, id)
		}
	}
}

func (t *Table) expiredLocked(e *tableEntry, now time.Time) bool {
	return e.session.State() == StateClosed || now.Sub(e.lastUsed) >= t.idleTimeout
}
