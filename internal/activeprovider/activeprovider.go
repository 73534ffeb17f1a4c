// Package activeprovider selects and rotates among an input's
// configured alias URLs (spec §4.10): priority-ordered lease
// acquisition with a per-alias circuit breaker so a repeatedly failing
// alias is skipped during selection without needing a lease first.
package activeprovider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrExhausted is returned when every alias for an input is at its
// connection cap (or tripped open).
var ErrExhausted = errors.New("activeprovider: no alias available")

// Alias is one upstream credential/URL an input can rotate through.
type Alias struct {
	ID             string
	Priority       int // lower fires first
	MaxConnections int // 0 = unlimited
	URL            string
	Username       string
	Password       string
}

type aliasState struct {
	alias  Alias
	leases map[string]struct{} // keyed by addr
	cb     *gobreaker.CircuitBreaker[any]
}

// Manager rotates among one input's aliases, tracking leases in memory
// (spec §4.10: "state is purely in memory; restarts lose leases").
type Manager struct {
	mu      sync.Mutex
	aliases []*aliasState
}

// NewManager builds a Manager for the given aliases, each wrapped in
// its own circuit breaker: it opens after 5 consecutive failures and
// probes again after 30s, mirroring the breaker settings the pack uses
// for flaky upstream APIs.
func NewManager(aliases []Alias) *Manager {
	m := &Manager{}
	for _, a := range aliases {
		name := a.ID
		cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("activeprovider: alias %s circuit %s -> %s", name, from, to)
			},
		})
		m.aliases = append(m.aliases, &aliasState{alias: a, leases: map[string]struct{}{}, cb: cb})
	}
	return m
}

// Lease is an acquired alias lease; callers release it by addr via
// (*Manager).Release.
type Lease struct {
	Addr     string
	AliasID  string
	URL      string
	Username string
	Password string
}

// Acquire selects an alias for addr per the selection algorithm in
// spec §4.10: among aliases whose breakers are not open and that have
// spare capacity,
// pick minimum priority, tie-break by fewest current leases, then by
// stable (declared) order.
func (m *Manager) Acquire(addr string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*aliasState
	for _, as := range m.aliases {
		if as.cb.State() == gobreaker.StateOpen {
			continue
		}
		if as.alias.MaxConnections > 0 && len(as.leases) >= as.alias.MaxConnections {
			continue
		}
		candidates = append(candidates, as)
	}
	if len(candidates) == 0 {
		return Lease{}, ErrExhausted
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].alias.Priority != candidates[j].alias.Priority {
			return candidates[i].alias.Priority < candidates[j].alias.Priority
		}
		return len(candidates[i].leases) < len(candidates[j].leases)
	})

	chosen := candidates[0]
	chosen.leases[addr] = struct{}{}
	return Lease{
		Addr:     addr,
		AliasID:  chosen.alias.ID,
		URL:      chosen.alias.URL,
		Username: chosen.alias.Username,
		Password: chosen.alias.Password,
	}, nil
}

// Release drops addr's lease from whichever alias holds it.
func (m *Manager) Release(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, as := range m.aliases {
		delete(as.leases, addr)
	}
}

// ReportResult feeds a dial/stream outcome for aliasID into its circuit
// breaker, so repeated upstream failures eventually open the breaker
// and exclude the alias from Acquire without requiring a lease.
func (m *Manager) ReportResult(ctx context.Context, aliasID string, err error) {
	m.mu.Lock()
	var as *aliasState
	for _, s := range m.aliases {
		if s.alias.ID == aliasID {
			as = s
			break
		}
	}
	m.mu.Unlock()
	if as == nil {
		return
	}
	_, _ = as.cb.Execute(func() (any, error) {
		return nil, err
	})
}

// AliasStat is a point-in-time snapshot of one alias's lease count and
// circuit state, for metrics polling.
type AliasStat struct {
	AliasID string
	Leases  int
	State   gobreaker.State
}

// Stats returns a snapshot of every alias's current lease count and
// circuit breaker state.
func (m *Manager) Stats() []AliasStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AliasStat, 0, len(m.aliases))
	for _, as := range m.aliases {
		out = append(out, AliasStat{AliasID: as.alias.ID, Leases: len(as.leases), State: as.cb.State()})
	}
	return out
}

// Probe wraps fn with aliasID's circuit breaker, returning
// gobreaker.ErrOpenState without calling fn when the breaker is open.
func (m *Manager) Probe(aliasID string, fn func() error) error {
	m.mu.Lock()
	var as *aliasState
	for _, s := range m.aliases {
		if s.alias.ID == aliasID {
			as = s
			break
		}
	}
	m.mu.Unlock()
	if as == nil {
		return fmt.Errorf("activeprovider: unknown alias %q", aliasID)
	}
	_, err := as.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}
