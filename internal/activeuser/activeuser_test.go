package activeuser

import (
	"testing"
	"time"
)

func TestPermissionAllowedUnderLimit(t *testing.T) {
	m := NewManager(5 * time.Second)
	now := time.Unix(1000, 0)
	m.Add("u", "a1", "ch1", "ua", 2, now)
	if p := m.Permission("u", 2, now); p != Allowed {
		t.Fatalf("expected Allowed, got %v", p)
	}
}

func TestPermissionGraceThenExhausted(t *testing.T) {
	m := NewManager(2 * time.Second)
	now := time.Unix(1000, 0)
	m.Add("u", "a1", "ch", "ua", 2, now)
	m.Add("u", "a2", "ch", "ua", 2, now)

	if p := m.Permission("u", 2, now.Add(time.Second)); p != GracePeriod {
		t.Fatalf("expected GracePeriod within grace window, got %v", p)
	}
	if p := m.Permission("u", 2, now.Add(3*time.Second)); p != Exhausted {
		t.Fatalf("expected Exhausted past grace window, got %v", p)
	}
}

func TestPermissionExhaustedOverLimitPlusOne(t *testing.T) {
	m := NewManager(time.Second)
	now := time.Unix(1000, 0)
	m.Add("u", "a1", "ch", "ua", 1, now)
	m.Add("u", "a2", "ch", "ua", 1, now) // grace slot
	if p := m.Permission("u", 1, now); p != Exhausted {
		t.Fatalf("expected Exhausted at max+1, got %v", p)
	}
}

func TestReleaseFreesSlotAndResetsGrace(t *testing.T) {
	m := NewManager(time.Second)
	now := time.Unix(1000, 0)
	m.Add("u", "a1", "ch", "ua", 1, now)
	m.Release("a1")
	if p := m.Permission("u", 1, now); p != Allowed {
		t.Fatalf("expected Allowed after release, got %v", p)
	}
	if c := m.Count("u"); c != 0 {
		t.Fatalf("expected count 0, got %d", c)
	}
}

func TestUnlimitedWhenMaxZero(t *testing.T) {
	m := NewManager(time.Second)
	now := time.Unix(1000, 0)
	for i := 0; i < 10; i++ {
		m.Add("u", "a"+string(rune('0'+i)), "ch", "ua", 0, now)
	}
	if p := m.Permission("u", 0, now); p != Allowed {
		t.Fatalf("expected Allowed with max=0, got %v", p)
	}
}

func TestEventsEmittedOnAddAndRelease(t *testing.T) {
	var kinds []EventKind
	m := NewManager(time.Second)
	m.OnEvent = func(e Event) { kinds = append(kinds, e.Kind) }
	now := time.Unix(1000, 0)
	m.Add("u", "a1", "ch", "ua", 2, now)
	m.Release("a1")
	if len(kinds) != 4 {
		t.Fatalf("expected 4 events (connected+summary, disconnected+summary), got %d: %v", len(kinds), kinds)
	}
	if kinds[0] != EventConnected || kinds[2] != EventDisconnected {
		t.Fatalf("unexpected event order: %v", kinds)
	}
}
