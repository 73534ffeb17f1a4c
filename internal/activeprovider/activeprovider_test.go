package activeprovider

import (
	"errors"
	"testing"
)

func TestAcquirePicksLowestPriority(t *testing.T) {
	m := NewManager([]Alias{
		{ID: "b", Priority: 2, URL: "http://b"},
		{ID: "a", Priority: 1, URL: "http://a"},
	})
	lease, err := m.Acquire("addr1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if lease.AliasID != "a" {
		t.Fatalf("expected alias a (lower priority), got %s", lease.AliasID)
	}
}

func TestAcquireTieBreaksByFewestLeases(t *testing.T) {
	m := NewManager([]Alias{
		{ID: "a", Priority: 1, URL: "http://a"},
		{ID: "b", Priority: 1, URL: "http://b"},
	})
	if _, err := m.Acquire("addr1"); err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	lease2, err := m.Acquire("addr2")
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if lease2.AliasID != "b" {
		t.Fatalf("expected second lease to go to alias b, got %s", lease2.AliasID)
	}
}

func TestAcquireExhaustedWhenAllFull(t *testing.T) {
	m := NewManager([]Alias{{ID: "a", Priority: 1, MaxConnections: 1, URL: "http://a"}})
	if _, err := m.Acquire("addr1"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := m.Acquire("addr2"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestReleaseFreesCapacity(t *testing.T) {
	m := NewManager([]Alias{{ID: "a", Priority: 1, MaxConnections: 1, URL: "http://a"}})
	if _, err := m.Acquire("addr1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.Release("addr1")
	if _, err := m.Acquire("addr2"); err != nil {
		t.Fatalf("expected acquire to succeed after release, got %v", err)
	}
}

func TestReportResultOpensBreakerAfterConsecutiveFailures(t *testing.T) {
	m := NewManager([]Alias{{ID: "a", Priority: 1, URL: "http://a"}})
	for i := 0; i < 5; i++ {
		m.ReportResult(nil, "a", errors.New("boom"))
	}
	if _, err := m.Acquire("addr1"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected breaker-open alias to be excluded, got %v", err)
	}
}
