package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewTableDefaults(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"zero", 0, DefaultMaxSessions},
		{"negative", -1, DefaultMaxSessions},
		{"too large", 300, DefaultMaxSessions},
		{"custom", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable(TableConfig{MaxSessions: tt.max})
			if table.maxSessions != tt.want {
				t.Errorf("maxSessions = %d, want %d", table.maxSessions, tt.want)
			}
			if table.idleTimeout != DefaultIdleTimeout {
				t.Errorf("idleTimeout = %v, want %v", table.idleTimeout, DefaultIdleTimeout)
			}
		})
	}
}

func TestTable(t *testing.T) {
	table := NewTable(TableConfig{MaxSessions: 2})
	cred := testCredential()

	s1, err := table.Create(cred)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s2, err := table.Create(cred)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s1.ID() == s2.ID() {
		t.Errorf("Create() returned duplicate id %d", s1.ID())
	}
	if s1.Role() != RoleDevice {
		t.Errorf("Role() = %s, want %s", s1.Role(), RoleDevice)
	}

	if _, err := table.Create(cred); !errors.Is(err, ErrSessionTableFull) {
		t.Errorf("Create() on full table error = %v, want ErrSessionTableFull", err)
	}

	got, err := table.Find(s1.ID())
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != s1 {
		t.Error("Find() returned a different session")
	}

	table.Remove(s1.ID())
	if _, err := table.Find(s1.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Find() after Remove error = %v, want ErrSessionNotFound", err)
	}
	if s1.State() != StateClosed {
		t.Errorf("State() after Remove = %s, want %s", s1.State(), StateClosed)
	}

	// Sessions that closed on failure free their slot.
	s2.Close()
	if n := table.Count(); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}

	if _, err := table.Create(cred); err != nil {
		t.Errorf("Create() after prune error = %v", err)
	}

	table.Clear()
	if n := table.Count(); n != 0 {
		t.Errorf("Count() after Clear = %d, want 0", n)
	}
}

func TestTableIdleExpiry(t *testing.T) {
	clock := newFakeClock()
	table := NewTable(TableConfig{
		MaxSessions: 2,
		IdleTimeout: 30 * time.Second,
		Now:         clock.Now,
	})
	cred := testCredential()

	// Two abandoned handshakes fill the table.
	abandoned, err := table.Create(cred)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	active, err := table.Create(cred)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := table.Create(cred); !errors.Is(err, ErrSessionTableFull) {
		t.Fatalf("Create() on full table error = %v, want ErrSessionTableFull", err)
	}

	clock.Advance(20 * time.Second)
	if _, err := table.Find(active.ID()); err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	clock.Advance(15 * time.Second)
	if n := table.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	if abandoned.State() != StateClosed {
		t.Errorf("idle session State() = %s, want %s", abandoned.State(), StateClosed)
	}
	if _, err := table.Find(abandoned.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Find() on idle session error = %v, want ErrSessionNotFound", err)
	}

	fresh, err := table.Create(cred)
	if err != nil {
		t.Fatalf("Create() after expiry error = %v", err)
	}
	if fresh.ID() == active.ID() {
		t.Errorf("Create() reused live id %d", active.ID())
	}

	// An expired session is not found even before a prune runs.
	clock.Advance(30 * time.Second)
	if _, err := table.Find(active.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Find() on expired session error = %v, want ErrSessionNotFound", err)
	}
	if active.State() != StateClosed {
		t.Errorf("expired session State() = %s, want %s", active.State(), StateClosed)
	}
}
