// Package catalog is the persistent catalog store (spec §4.4): per
// target it keeps three B⁺-tree cluster files (Live, Video, Series)
// keyed by virtual_id, a virtual-id mapping tree keyed the same way, and
// a category-metadata sidecar file. All on-disk access is ordered
// through the file-lock manager's scoped guards, matching the teacher's
// catalog.go write-temp-fsync-rename discipline but fanned out across
// one B⁺-tree file per cluster instead of one flat JSON blob.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/iptvgw/gateway/internal/bptree"
	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/filelock"
	"github.com/iptvgw/gateway/internal/fingerprint"
)

// Repository persists catalog data under dir, one file set per target.
type Repository struct {
	dir   string
	locks *filelock.Manager
}

// New returns a repository rooted at dir. dir is created on first write
// if it does not exist.
func New(dir string, locks *filelock.Manager) *Repository {
	return &Repository{dir: dir, locks: locks}
}

func (r *Repository) clusterPath(target string, cluster catalogmodel.Cluster) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.db", target, cluster))
}

func (r *Repository) mappingPath(target string) string {
	return filepath.Join(r.dir, target+"_mapping.db")
}

func (r *Repository) categoriesPath(target string) string {
	return filepath.Join(r.dir, target+"_categories.json")
}

// Persist replaces cluster's tree for target with one built from
// channels, keyed by VirtualID. Callers must have already assigned
// virtual ids (see AssignVirtualIDs) before calling Persist.
func (r *Repository) Persist(ctx context.Context, target string, cluster catalogmodel.Cluster, channels []catalogmodel.Channel) error {
	path := r.clusterPath(target, cluster)
	guard, err := r.locks.WriteLock(ctx, filelock.NormalizePath(path))
	if err != nil {
		return fmt.Errorf("catalog: acquire write lock: %w", err)
	}
	defer guard.Unlock()

	tree := bptree.New()
	for _, ch := range channels {
		data, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("catalog: marshal channel %d: %w", ch.VirtualID, err)
		}
		tree.Insert(ch.VirtualID, data)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("catalog: mkdir: %w", err)
	}
	if err := tree.Store(path); err != nil {
		return fmt.Errorf("catalog: store %s/%s: %w", target, cluster, err)
	}
	return nil
}

// Iter returns every channel in target's cluster, ordered by virtual_id
// ascending. Per spec §4.4, a missing or corrupt sibling index is logged
// and reported as an empty stream rather than a fatal error.
func (r *Repository) Iter(ctx context.Context, target string, cluster catalogmodel.Cluster) ([]catalogmodel.Channel, error) {
	path := r.clusterPath(target, cluster)
	guard, err := r.locks.ReadLock(ctx, filelock.NormalizePath(path))
	if err != nil {
		return nil, fmt.Errorf("catalog: acquire read lock: %w", err)
	}
	defer guard.Unlock()

	tree, err := loadTreeTolerant(path, target, string(cluster))
	if err != nil {
		return nil, err
	}
	entries := tree.Iter()
	out := make([]catalogmodel.Channel, 0, len(entries))
	for _, e := range entries {
		var ch catalogmodel.Channel
		if err := json.Unmarshal(e.Value, &ch); err != nil {
			log.Printf("catalog: skipping unreadable record %s/%s#%d: %v", target, cluster, e.Key, err)
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// GetByVirtualID looks up a single channel by virtual id.
func (r *Repository) GetByVirtualID(ctx context.Context, target string, cluster catalogmodel.Cluster, vid uint32) (catalogmodel.Channel, bool, error) {
	path := r.clusterPath(target, cluster)
	guard, err := r.locks.ReadLock(ctx, filelock.NormalizePath(path))
	if err != nil {
		return catalogmodel.Channel{}, false, fmt.Errorf("catalog: acquire read lock: %w", err)
	}
	defer guard.Unlock()

	tree, err := loadTreeTolerant(path, target, string(cluster))
	if err != nil {
		return catalogmodel.Channel{}, false, err
	}
	data, ok := tree.Find(vid)
	if !ok {
		return catalogmodel.Channel{}, false, nil
	}
	var ch catalogmodel.Channel
	if err := json.Unmarshal(data, &ch); err != nil {
		return catalogmodel.Channel{}, false, fmt.Errorf("catalog: decode record: %w", err)
	}
	return ch, true, nil
}

// loadTreeTolerant loads path's tree, treating a missing data file or
// ErrNeedsRebuild as "no data yet" instead of an error.
func loadTreeTolerant(path, target, cluster string) (*bptree.Tree, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return bptree.New(), nil
	}
	tree, err := bptree.Load(path)
	if err == bptree.ErrNeedsRebuild {
		log.Printf("catalog: %s/%s index needs rebuild, reporting empty stream", target, cluster)
		return bptree.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load %s/%s: %w", target, cluster, err)
	}
	return tree, nil
}

// AssignVirtualIDs assigns a stable virtual_id to every channel in
// channels, consulting and updating target's mapping tree (spec §4.1,
// §4.4). Channels already known by fingerprint keep their prior id;
// unseen fingerprints receive the next unused id starting at 1, in
// first-seen order. The updated mapping tree is persisted before
// returning.
func (r *Repository) AssignVirtualIDs(ctx context.Context, target string, channels []catalogmodel.Channel, now int64) error {
	path := r.mappingPath(target)
	guard, err := r.locks.WriteLock(ctx, filelock.NormalizePath(path))
	if err != nil {
		return fmt.Errorf("catalog: acquire mapping write lock: %w", err)
	}
	defer guard.Unlock()

	existing, maxID, err := loadMappingLocked(path, target)
	if err != nil {
		return err
	}

	nextID := maxID + 1
	assigned := make(map[fingerprint.ID]uint32, len(existing))
	for vid, m := range existing {
		assigned[m.UUID] = vid
	}

	for i := range channels {
		uuid := channels[i].Fingerprint()
		if vid, ok := assigned[uuid]; ok {
			channels[i].VirtualID = vid
			continue
		}
		vid := nextID
		nextID++
		assigned[uuid] = vid
		channels[i].VirtualID = vid
		existing[vid] = catalogmodel.VirtualIDMapping{
			ProviderID:  channels[i].ProviderID,
			UUID:        uuid,
			ItemType:    channels[i].ItemType,
			LastUpdated: now,
		}
	}

	tree := bptree.New()
	for vid, m := range existing {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("catalog: marshal mapping %d: %w", vid, err)
		}
		tree.Insert(vid, data)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("catalog: mkdir: %w", err)
	}
	if err := tree.Store(path); err != nil {
		return fmt.Errorf("catalog: store mapping %s: %w", target, err)
	}
	return nil
}

func loadMappingLocked(path, target string) (map[uint32]catalogmodel.VirtualIDMapping, uint32, error) {
	out := make(map[uint32]catalogmodel.VirtualIDMapping)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return out, 0, nil
	}
	tree, err := bptree.Load(path)
	if err == bptree.ErrNeedsRebuild {
		log.Printf("catalog: %s mapping tree needs rebuild, starting fresh", target)
		return out, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: load mapping %s: %w", target, err)
	}
	var maxID uint32
	for _, e := range tree.Iter() {
		var m catalogmodel.VirtualIDMapping
		if err := json.Unmarshal(e.Value, &m); err != nil {
			log.Printf("catalog: skipping unreadable mapping record %s#%d: %v", target, e.Key, err)
			continue
		}
		out[e.Key] = m
		if e.Key > maxID {
			maxID = e.Key
		}
	}
	return out, maxID, nil
}

// SaveCategories writes target's category metadata as JSON, sorted by
// (cluster, category_id) for deterministic bytes across runs.
func (r *Repository) SaveCategories(ctx context.Context, target string, cats []catalogmodel.Category) error {
	path := r.categoriesPath(target)
	guard, err := r.locks.WriteLock(ctx, filelock.NormalizePath(path))
	if err != nil {
		return fmt.Errorf("catalog: acquire categories write lock: %w", err)
	}
	defer guard.Unlock()

	sorted := append([]catalogmodel.Category(nil), cats...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Cluster != sorted[j].Cluster {
			return sorted[i].Cluster < sorted[j].Cluster
		}
		return sorted[i].CategoryID < sorted[j].CategoryID
	})
	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal categories: %w", err)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("catalog: mkdir: %w", err)
	}
	return atomicWriteFile(path, data)
}

// LoadCategories reads target's category metadata, or an empty slice if
// the file does not exist yet.
func (r *Repository) LoadCategories(ctx context.Context, target string) ([]catalogmodel.Category, error) {
	path := r.categoriesPath(target)
	guard, err := r.locks.ReadLock(ctx, filelock.NormalizePath(path))
	if err != nil {
		return nil, fmt.Errorf("catalog: acquire categories read lock: %w", err)
	}
	defer guard.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read categories: %w", err)
	}
	var cats []catalogmodel.Category
	if err := json.Unmarshal(data, &cats); err != nil {
		return nil, fmt.Errorf("catalog: decode categories: %w", err)
	}
	return cats, nil
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.json.tmp")
	if err != nil {
		return fmt.Errorf("catalog: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if writeErr != nil || syncErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("catalog: write: %w", writeErr)
		}
		if syncErr != nil {
			return fmt.Errorf("catalog: sync: %w", syncErr)
		}
		return fmt.Errorf("catalog: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog: rename: %w", err)
	}
	return nil
}
