package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCanStreamStatusRules(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		status Status
		exp    *int64
		want   bool
	}{
		{StatusActive, nil, true},
		{StatusTrial, nil, true},
		{StatusBanned, nil, false},
		{StatusPending, nil, false},
	}
	for _, c := range cases {
		u := &User{Status: c.status, ExpDate: c.exp}
		if got := u.CanStream(now); got != c.want {
			t.Fatalf("status=%s: CanStream = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestCanStreamExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	past := now.Unix() - 10
	future := now.Unix() + 10
	expired := &User{Status: StatusActive, ExpDate: &past}
	if expired.CanStream(now) {
		t.Fatalf("expected expired user denied")
	}
	valid := &User{Status: StatusActive, ExpDate: &future}
	if !valid.CanStream(now) {
		t.Fatalf("expected not-yet-expired user allowed")
	}
	unlimited := &User{Status: StatusActive, ExpDate: nil}
	if !unlimited.CanStream(now) {
		t.Fatalf("expected nil exp_date to mean unlimited")
	}
}

func TestRedirectCluster(t *testing.T) {
	redirectAll := &User{Proxy: ProxyRedirect}
	if !redirectAll.RedirectCluster("live") {
		t.Fatalf("expected Redirect mode to force every cluster")
	}
	partial := &User{Proxy: ProxyReverse, ReverseFlags: []string{"series"}}
	if !partial.RedirectCluster("series") {
		t.Fatalf("expected series override to redirect")
	}
	if partial.RedirectCluster("live") {
		t.Fatalf("expected live to stay in reverse mode")
	}
}

func TestStoreLoadAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api-proxy.yml")
	doc := `
users:
  - username: alice
    password: secret
    proxy: reverse
    max_connections: 2
    status: active
    ui_enabled: true
  - username: bob
    password: secret2
    proxy: redirect
    status: disabled
    ui_enabled: false
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore()
	if err := s.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	alice, ok := s.Lookup("alice")
	if !ok || alice.MaxConnections != 2 {
		t.Fatalf("alice = %+v, ok=%v", alice, ok)
	}
	bob, ok := s.Lookup("bob")
	if !ok || bob.Status != StatusDisabled {
		t.Fatalf("bob = %+v, ok=%v", bob, ok)
	}
	if _, ok := s.Lookup("nobody"); ok {
		t.Fatalf("expected miss for unknown user")
	}
}

func TestStoreReloadSwapsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api-proxy.yml")
	os.WriteFile(path, []byte("users:\n  - username: a\n    status: active\n"), 0o644)
	s := NewStore()
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	snap1 := s.Snapshot()
	os.WriteFile(path, []byte("users:\n  - username: b\n    status: active\n"), 0o644)
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	if _, ok := snap1["a"]; !ok {
		t.Fatalf("old snapshot should be unaffected by reload")
	}
	if _, ok := s.Lookup("b"); !ok {
		t.Fatalf("expected new snapshot to have user b")
	}
}
