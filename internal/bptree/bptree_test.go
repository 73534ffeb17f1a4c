package bptree

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestInsertFindOrdering(t *testing.T) {
	tr := New()
	keys := []uint32{50, 10, 30, 20, 40, 1, 999}
	for _, k := range keys {
		tr.Insert(k, []byte(fmt.Sprintf("v%d", k)))
	}
	for _, k := range keys {
		v, ok := tr.Find(k)
		if !ok || string(v) != fmt.Sprintf("v%d", k) {
			t.Fatalf("find(%d) = %q, %v", k, v, ok)
		}
	}
	iter := tr.Iter()
	for i := 1; i < len(iter); i++ {
		if iter[i-1].Key >= iter[i].Key {
			t.Fatalf("iter not ascending at %d: %d >= %d", i, iter[i-1].Key, iter[i].Key)
		}
	}
	if _, ok := tr.Find(12345); ok {
		t.Fatalf("unexpected hit for absent key")
	}
}

func TestFindLE(t *testing.T) {
	tr := New()
	for _, k := range []uint32{10, 20, 30} {
		tr.Insert(k, nil)
	}
	e, ok := tr.FindLE(25)
	if !ok || e.Key != 20 {
		t.Fatalf("FindLE(25) = %+v, %v", e, ok)
	}
	if _, ok := tr.FindLE(5); ok {
		t.Fatalf("FindLE(5) should miss")
	}
	e, ok = tr.FindLE(30)
	if !ok || e.Key != 30 {
		t.Fatalf("FindLE(30) = %+v, %v", e, ok)
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_live.db")

	tr := New()
	for i := uint32(1); i <= 500; i++ {
		tr.Insert(i, []byte(fmt.Sprintf("chan-%d", i)))
	}
	if err := tr.Store(path); err != nil {
		t.Fatalf("store: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != tr.Len() {
		t.Fatalf("len mismatch: got %d want %d", loaded.Len(), tr.Len())
	}
	for i := uint32(1); i <= 500; i++ {
		v, ok := loaded.Find(i)
		if !ok || string(v) != fmt.Sprintf("chan-%d", i) {
			t.Fatalf("find(%d) after load = %q, %v", i, v, ok)
		}
	}
	iter := loaded.Iter()
	for i := 1; i < len(iter); i++ {
		if iter[i-1].Key >= iter[i].Key {
			t.Fatalf("loaded iter not ascending at %d", i)
		}
	}
}

func TestLoadMissingIndexNeedsRebuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_live.db")

	tr := New()
	tr.Insert(1, []byte("a"))
	if err := tr.Store(path); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := os.Remove(IndexPath(path)); err != nil {
		t.Fatalf("remove index: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected ErrNeedsRebuild")
	}
	if err != ErrNeedsRebuild {
		t.Fatalf("expected ErrNeedsRebuild, got %v", err)
	}
}

func TestEmptyTreeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_series.db")
	tr := New()
	if err := tr.Store(path); err != nil {
		t.Fatalf("store: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 0 {
		t.Fatalf("expected empty tree, got %d entries", loaded.Len())
	}
}
