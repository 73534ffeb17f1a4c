package reverseproxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iptvgw/gateway/internal/activeprovider"
	"github.com/iptvgw/gateway/internal/activeuser"
	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/credentials"
	"github.com/iptvgw/gateway/internal/sharedstream"
)

type fakeLookup struct {
	channel  catalogmodel.Channel
	found    bool
	provider *activeprovider.Manager
}

func (f *fakeLookup) Channel(ctx context.Context, target string, virtualID uint32) (catalogmodel.Channel, bool, error) {
	return f.channel, f.found, nil
}

func (f *fakeLookup) ProviderFor(inputName string) (*activeprovider.Manager, bool) {
	if f.provider == nil {
		return nil, false
	}
	return f.provider, true
}

// newStore writes users to a temporary api-proxy.yml and loads it,
// since credentials.Store only exposes mutation via Load.
func newStore(t *testing.T, users map[string]*credentials.User) *credentials.Store {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("users:\n")
	for _, u := range users {
		maxConn := u.MaxConnections
		fmt.Fprintf(&sb, "  - username: %s\n    password: %s\n    proxy: %s\n    status: %s\n    max_connections: %d\n",
			u.Username, u.Password, u.Proxy, u.Status, maxConn)
		if len(u.ReverseFlags) > 0 {
			sb.WriteString("    reverse_flags: [" + strings.Join(u.ReverseFlags, ", ") + "]\n")
		}
	}
	path := filepath.Join(t.TempDir(), "api-proxy.yml")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s := credentials.NewStore()
	if err := s.Load(path); err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return s
}

func TestServeStreamRejectsUnknownUser(t *testing.T) {
	store := newStore(t, map[string]*credentials.User{})
	h := New(Options{
		Credentials: store,
		Users:       &activeuser.Manager{},
		Shared:      sharedstream.NewManager(),
		Lookup:      &fakeLookup{},
	})
	err := h.ServeStream(context.Background(), &bytes.Buffer{}, Request{Username: "nobody", Addr: "1.1.1.1"}, nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestServeStreamRedirectsWhenProxyModeRedirect(t *testing.T) {
	store := newStore(t, map[string]*credentials.User{
		"u1": {Username: "u1", Status: credentials.StatusActive, Proxy: credentials.ProxyRedirect, MaxConnections: 1},
	})
	lookup := &fakeLookup{found: true, channel: catalogmodel.Channel{URL: "http://upstream/live.ts", ItemType: catalogmodel.ItemLive}}
	h := New(Options{
		Credentials: store,
		Users:       activeuser.NewManager(time.Second),
		Shared:      sharedstream.NewManager(),
		Lookup:      lookup,
	})
	err := h.ServeStream(context.Background(), &bytes.Buffer{}, Request{Username: "u1", Addr: "1.1.1.1"}, nil)
	var redirErr *RedirectError
	if !errors.As(err, &redirErr) {
		t.Fatalf("expected RedirectError, got %v", err)
	}
	if redirErr.URL != "http://upstream/live.ts" {
		t.Fatalf("unexpected redirect url: %s", redirErr.URL)
	}
}

func TestServeStreamRelaysUpstreamBytes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	store := newStore(t, map[string]*credentials.User{
		"u1": {Username: "u1", Status: credentials.StatusActive, Proxy: credentials.ProxyReverse, MaxConnections: 2},
	})
	provider := activeprovider.NewManager([]activeprovider.Alias{{ID: "a", Priority: 1, URL: upstream.URL}})
	lookup := &fakeLookup{found: true, channel: catalogmodel.Channel{URL: upstream.URL, ItemType: catalogmodel.ItemLive}, provider: provider}
	h := New(Options{
		Credentials: store,
		Users:       activeuser.NewManager(time.Second),
		Shared:      sharedstream.NewManager(),
		Lookup:      lookup,
	})

	var buf bytes.Buffer
	err := h.ServeStream(context.Background(), &buf, Request{Username: "u1", Addr: "2.2.2.2", Target: "t1", VirtualID: 1}, nil)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	if buf.String() != "hello" {
		t.Fatalf("unexpected body: %q", buf.String())
	}
}

func TestServeStreamExhaustedWhenUserAtMax(t *testing.T) {
	store := newStore(t, map[string]*credentials.User{
		"u1": {Username: "u1", Status: credentials.StatusActive, Proxy: credentials.ProxyReverse, MaxConnections: 1},
	})
	users := activeuser.NewManager(time.Second)
	users.Add("u1", "existing", "t1", "", 1, time.Now())

	provider := activeprovider.NewManager([]activeprovider.Alias{{ID: "a", Priority: 1, URL: "http://example.invalid"}})
	lookup := &fakeLookup{found: true, channel: catalogmodel.Channel{URL: "http://example.invalid", ItemType: catalogmodel.ItemLive}, provider: provider}
	h := New(Options{
		Credentials: store,
		Users:       users,
		Shared:      sharedstream.NewManager(),
		Lookup:      lookup,
	})

	err := h.ServeStream(context.Background(), &bytes.Buffer{}, Request{Username: "u1", Addr: "3.3.3.3", Target: "t1", VirtualID: 1}, nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestServeStreamChannelNotFound(t *testing.T) {
	store := newStore(t, map[string]*credentials.User{
		"u1": {Username: "u1", Status: credentials.StatusActive, Proxy: credentials.ProxyReverse, MaxConnections: 1},
	})
	h := New(Options{
		Credentials: store,
		Users:       activeuser.NewManager(time.Second),
		Shared:      sharedstream.NewManager(),
		Lookup:      &fakeLookup{found: false},
	})
	err := h.ServeStream(context.Background(), &bytes.Buffer{}, Request{Username: "u1", Addr: "4.4.4.4"}, nil)
	if !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestRelayStopsOnIdleGracePeriod(t *testing.T) {
	m := sharedstream.NewManager()
	key := sharedstream.Key{Target: "t", VirtualID: 9}
	block := make(chan struct{})
	sub, err := m.Subscribe(context.Background(), key, func(ctx context.Context, k sharedstream.Key) (io.ReadCloser, error) {
		return &neverReadBody{block: block}, nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer close(block)
	defer m.Unsubscribe(key, sub)

	h := New(Options{GracePeriod: 20 * time.Millisecond})
	err = h.relay(context.Background(), &bytes.Buffer{}, sub, nil)
	if !errors.Is(err, errIdleTimeout) {
		t.Fatalf("expected errIdleTimeout, got %v", err)
	}
}

type neverReadBody struct{ block chan struct{} }

func (b *neverReadBody) Read(p []byte) (int, error) {
	<-b.block
	return 0, io.EOF
}
func (b *neverReadBody) Close() error { return nil }
