package filelock

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestReadersShareWriteExcludes(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	g1, err := m.ReadLock(ctx, "k")
	if err != nil {
		t.Fatalf("read lock 1: %v", err)
	}
	g2, err := m.ReadLock(ctx, "k")
	if err != nil {
		t.Fatalf("read lock 2: %v", err)
	}
	g1.Unlock()
	g2.Unlock()

	wg, ok := m.TryWriteLock("k")
	if !ok {
		t.Fatalf("expected write lock to be free")
	}
	if _, ok := m.TryWriteLock("k"); ok {
		t.Fatalf("second write lock should not succeed while held")
	}
	wg.Unlock()
}

func TestWriteLockExcludesRead(t *testing.T) {
	m := NewManager()
	wg, ok := m.TryWriteLock("k")
	if !ok {
		t.Fatalf("expected write lock")
	}
	defer wg.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := m.ReadLock(ctx, "k"); err == nil {
		t.Fatalf("expected read lock to block until timeout")
	}
}

func TestSameKeySharesEntry(t *testing.T) {
	m := NewManager()
	var mu sync.Mutex
	var seq []int
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			g, err := m.WriteLock(context.Background(), "shared")
			if err != nil {
				t.Errorf("write lock: %v", err)
				return
			}
			mu.Lock()
			seq = append(seq, n)
			mu.Unlock()
			g.Unlock()
		}(i)
	}
	wg.Wait()
	if len(seq) != 4 {
		t.Fatalf("expected 4 serialized writers, got %d", len(seq))
	}
}

func TestPruneDropsUnreferencedEntries(t *testing.T) {
	m := NewManager()
	g, ok := m.TryWriteLock("prune-me")
	if !ok {
		t.Fatalf("expected lock")
	}
	g.Unlock()

	m.mu.Lock()
	_, present := m.registry["prune-me"]
	m.mu.Unlock()
	if !present {
		t.Fatalf("expected registry entry before prune")
	}
	runtime.GC()
	m.Prune()

	m.mu.Lock()
	_, present = m.registry["prune-me"]
	m.mu.Unlock()
	if present {
		t.Fatalf("expected prune to drop the unreferenced entry")
	}
}

func TestNormalizePathStable(t *testing.T) {
	a := NormalizePath("./foo/../foo/bar.db")
	b := NormalizePath("foo/bar.db")
	if a != b {
		t.Fatalf("expected same normalized path, got %q vs %q", a, b)
	}
}
