package fetchcache

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestValidatorsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	url := "http://provider.example/playlist.m3u"

	if _, ok, err := s.Lookup(url); err != nil || ok {
		t.Fatalf("expected miss on empty store, ok=%v err=%v", ok, err)
	}

	want := Validators{ETag: `"abc"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT", ContentHash: "deadbeef", FetchedAt: time.Unix(1700000000, 0).UTC()}
	if err := s.StoreValidators(url, want); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, ok, err := s.Lookup(url)
	if err != nil || !ok {
		t.Fatalf("lookup after store: ok=%v err=%v", ok, err)
	}
	if got.ETag != want.ETag || got.ContentHash != want.ContentHash || !got.FetchedAt.Equal(want.FetchedAt) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestValidatorsUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	url := "http://provider.example/playlist.m3u"
	s.StoreValidators(url, Validators{ETag: "first", FetchedAt: time.Unix(1, 0)})
	s.StoreValidators(url, Validators{ETag: "second", FetchedAt: time.Unix(2, 0)})
	got, ok, err := s.Lookup(url)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if got.ETag != "second" {
		t.Fatalf("expected overwrite, got %q", got.ETag)
	}
}

func TestVODInfoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := []byte(`{"info":{"name":"Movie"}}`)
	at := time.Unix(1700000000, 0).UTC()
	if err := s.StoreVODInfo("provider1", "42", payload, at); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, fetchedAt, ok, err := s.LookupVODInfo("provider1", "42")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if string(got) != string(payload) || !fetchedAt.Equal(at) {
		t.Fatalf("got %s at %v, want %s at %v", got, fetchedAt, payload, at)
	}
	if _, _, ok, _ := s.LookupVODInfo("provider1", "99"); ok {
		t.Fatalf("expected miss for unknown provider id")
	}
}

func TestFresh(t *testing.T) {
	now := time.Unix(1700000000, 0)
	if !Fresh(now.Add(-time.Hour), 0, now) {
		t.Fatalf("zero ttl should always be fresh")
	}
	if !Fresh(now.Add(-time.Minute), time.Hour, now) {
		t.Fatalf("expected within-ttl entry to be fresh")
	}
	if Fresh(now.Add(-2*time.Hour), time.Hour, now) {
		t.Fatalf("expected beyond-ttl entry to be stale")
	}
}
