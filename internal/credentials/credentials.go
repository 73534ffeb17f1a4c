// Package credentials loads and evaluates user credentials from
// api-proxy.yml (spec §3, §6): the proxy-mode, connection-limit, and
// status/expiry rules gating stream admission, held behind a
// hot-swappable snapshot so a reload never disrupts an in-flight
// request.
package credentials

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// ProxyMode selects redirect vs. reverse streaming for a user.
type ProxyMode string

const (
	ProxyRedirect ProxyMode = "redirect"
	ProxyReverse  ProxyMode = "reverse"
)

// Status is a credential's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusBanned   Status = "banned"
	StatusTrial    Status = "trial"
	StatusDisabled Status = "disabled"
	StatusPending  Status = "pending"
)

// User is one credential record (spec §3).
type User struct {
	Username       string    `yaml:"username"`
	Password       string    `yaml:"password"`
	Token          string    `yaml:"token,omitempty"`
	Proxy          ProxyMode `yaml:"proxy"`
	ReverseFlags   []string  `yaml:"reverse_flags,omitempty"` // clusters forced to redirect under Reverse mode
	Server         string    `yaml:"server,omitempty"`
	MaxConnections int       `yaml:"max_connections"` // 0 = unlimited
	ExpDate        *int64    `yaml:"exp_date,omitempty"` // seconds since epoch UTC; nil = unlimited
	CreatedAt      *int64    `yaml:"created_at,omitempty"`
	Status         Status    `yaml:"status"`
	UIEnabled      bool      `yaml:"ui_enabled"`
	Comment        string    `yaml:"comment,omitempty"`
}

// CanStream reports whether this user may open a stream at time now. A
// credential with status outside {Active,Trial} or past its expiry date
// denies streaming but may still serve metadata. A nil ExpDate always
// means unlimited for admission, independent of how an emitter chooses
// to display it.
func (u *User) CanStream(now time.Time) bool {
	if u.Status != StatusActive && u.Status != StatusTrial {
		return false
	}
	if u.ExpDate != nil && now.Unix() > *u.ExpDate {
		return false
	}
	return true
}

// RedirectCluster reports whether cluster (e.g. "live", "video",
// "series") is forced to Redirect mode even though the user's overall
// Proxy mode is Reverse.
func (u *User) RedirectCluster(cluster string) bool {
	if u.Proxy == ProxyRedirect {
		return true
	}
	for _, c := range u.ReverseFlags {
		if c == cluster {
			return true
		}
	}
	return false
}

// Store is a hot-swappable snapshot of the credential set, keyed by
// username. Callers load a snapshot once per operation via Snapshot and
// never observe a reload mid-operation.
type Store struct {
	snapshot atomic.Pointer[map[string]*User]
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	empty := map[string]*User{}
	s.snapshot.Store(&empty)
	return s
}

// Load reads path (api-proxy.yml: a top-level "users" list) and
// atomically swaps it in as the current snapshot.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("credentials: read %s: %w", path, err)
	}
	var doc struct {
		Users []User `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("credentials: parse %s: %w", path, err)
	}
	byName := make(map[string]*User, len(doc.Users))
	for i := range doc.Users {
		u := doc.Users[i]
		byName[u.Username] = &u
	}
	s.snapshot.Store(&byName)
	return nil
}

// Snapshot returns the current credential map. The returned map must
// not be mutated; a reload replaces the whole map rather than editing it
// in place.
func (s *Store) Snapshot() map[string]*User {
	return *s.snapshot.Load()
}

// Lookup returns the user with the given username, if any, from the
// current snapshot.
func (s *Store) Lookup(username string) (*User, bool) {
	m := s.Snapshot()
	u, ok := m[username]
	return u, ok
}
