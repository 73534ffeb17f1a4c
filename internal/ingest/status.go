package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

// State is the outcome of the most recent attempt to refresh a cluster.
type State string

const (
	StateOk     State = "ok"
	StateFailed State = "failed"
)

// ClusterStatus records the last refresh outcome for one cluster of one
// target, persisted in a status.json sibling next to its cluster trees.
type ClusterStatus struct {
	State State `json:"state"`
	At    int64 `json:"at"` // seconds since epoch, UTC
}

// StatusDoc is the full status.json document for a target: one entry per
// cluster that has ever been refreshed.
type StatusDoc struct {
	Clusters map[catalogmodel.Cluster]ClusterStatus `json:"clusters"`
}

func statusPath(dir, target string) string {
	return filepath.Join(dir, target+".status.json")
}

// LoadStatus reads the status document for target. A missing file yields
// an empty, non-nil document rather than an error.
func LoadStatus(dir, target string) (*StatusDoc, error) {
	data, err := os.ReadFile(statusPath(dir, target))
	if os.IsNotExist(err) {
		return &StatusDoc{Clusters: map[catalogmodel.Cluster]ClusterStatus{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: read status for %s: %w", target, err)
	}
	var doc StatusDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ingest: parse status for %s: %w", target, err)
	}
	if doc.Clusters == nil {
		doc.Clusters = map[catalogmodel.Cluster]ClusterStatus{}
	}
	return &doc, nil
}

// Save atomically writes doc to the status.json sibling for target.
func (doc *StatusDoc) Save(dir, target string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: marshal status for %s: %w", target, err)
	}
	path := statusPath(dir, target)
	tmp, err := os.CreateTemp(dir, ".status-*.json.tmp")
	if err != nil {
		return fmt.Errorf("ingest: create temp status file: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("ingest: write status: %w", writeErr)
		}
		return fmt.Errorf("ingest: close status: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ingest: rename status into place: %w", err)
	}
	return nil
}

// Mark records the outcome of a refresh attempt for cluster at "now".
func (doc *StatusDoc) Mark(cluster catalogmodel.Cluster, state State, now time.Time) {
	if doc.Clusters == nil {
		doc.Clusters = map[catalogmodel.Cluster]ClusterStatus{}
	}
	doc.Clusters[cluster] = ClusterStatus{State: state, At: now.UTC().Unix()}
}

// Fresh reports whether cluster's last recorded state is Ok and still
// within maxAge of now. A maxAge of zero or less means "never fresh"
// (always refresh). A recorded timestamp in the future relative to now
// (clock skew) is treated as stale rather than as extra-fresh: the
// comparison is a strict age < maxAge, and a negative age never
// satisfies it.
func (doc *StatusDoc) Fresh(cluster catalogmodel.Cluster, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		return false
	}
	st, ok := doc.Clusters[cluster]
	if !ok || st.State != StateOk {
		return false
	}
	age := now.UTC().Unix() - st.At
	if age < 0 {
		return false
	}
	return age < int64(maxAge.Seconds())
}
