package metrics

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// AliasSnapshotFunc adapts a concrete provider manager's Stats method
// to the shape PollProviders needs.
type AliasSnapshotFunc func() []AliasSnapshot

// AliasSnapshot mirrors activeprovider.AliasStat without importing it.
type AliasSnapshot struct {
	AliasID string
	Leases  int
	State   gobreaker.State
}

// PollProviders periodically snapshots every input's provider manager
// into ActiveProviderLeases/ActiveProviderCircuitState, until ctx is
// canceled.
func PollProviders(ctx context.Context, interval time.Duration, snapshots map[string]AliasSnapshotFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, snap := range snapshots {
				for _, s := range snap() {
					ActiveProviderLeases.WithLabelValues(s.AliasID).Set(float64(s.Leases))
					ActiveProviderCircuitState.WithLabelValues(s.AliasID).Set(circuitStateValue(s.State))
				}
			}
		}
	}
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
