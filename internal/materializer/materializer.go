package materializer

import (
	"context"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

// Interface decides whether a VOD/series asset has a local cached file and returns its path.
// Stub (no cache dir configured): never materializes.
// DirectFile: direct-file download to cache and return path.
// Cache: direct-file or HLS remux to cache, then return path.
type Interface interface {
	// Materialize ensures the asset is available on disk and returns the path.
	// streamURL is the provider URL for this asset (used to download if not cached).
	// If not yet materialized or unsupported type, returns ("", ErrNotReady) or ("", other error).
	Materialize(ctx context.Context, assetID string, streamURL string) (localPath string, err error)
}

// ErrNotReady indicates the asset is not yet materialized.
type ErrNotReady struct{ AssetID string }

func (e ErrNotReady) Error() string { return "not materialized: " + e.AssetID }

// SupportsCluster reports whether cluster is ever mounted through
// vodfs.MountBackground. Live is excluded: the Live cluster is served
// by the reverse-proxy's connection-pinned passthrough (spec §4.5),
// never by the FUSE VOD filesystem, so a materializer is never asked
// to fetch a Live asset.
func SupportsCluster(cluster catalogmodel.Cluster) bool {
	return cluster == catalogmodel.ClusterVideo || cluster == catalogmodel.ClusterSeries
}
