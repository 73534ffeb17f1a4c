// Package ingest fetches, parses, and lazily enriches provider playlists
// (M3U and Xtream) into catalog channels, merging batch-alias inputs and
// accumulating per-input errors without aborting the run (spec §4.6).
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
)

// TargetIngestResult is the union of every enabled input's catalogs for
// one target, split by cluster, plus whatever errors were accumulated
// along the way. A non-empty Errors slice does not mean the result is
// unusable: partial catalogs are still returned per the per-input error
// policy.
type TargetIngestResult struct {
	Live   []catalogmodel.Channel
	Video  []catalogmodel.Channel
	Series []catalogmodel.Channel
	Errors []error
}

type effectiveInput struct {
	name string
	cfg  config.InputConfig
}

// expandBatch turns a batch input into one effective input per alias,
// each inheriting cfg's kind/headers/concurrency but with its own name,
// URL, and credentials. A non-batch input yields itself unchanged.
func expandBatch(cfg config.InputConfig) []effectiveInput {
	if len(cfg.Batch) == 0 {
		return []effectiveInput{{name: cfg.Name, cfg: cfg}}
	}
	out := make([]effectiveInput, 0, len(cfg.Batch))
	for _, alias := range cfg.Batch {
		aliasCfg := cfg
		aliasCfg.Batch = nil
		if alias.URL != "" {
			aliasCfg.URL = alias.URL
			aliasCfg.XtreamBaseURL = alias.URL
		}
		if alias.Username != "" {
			aliasCfg.Username = alias.Username
		}
		if alias.Password != "" {
			aliasCfg.Password = alias.Password
		}
		out = append(out, effectiveInput{name: cfg.Name + "#" + alias.AliasID, cfg: aliasCfg})
	}
	return out
}

// IngestTarget fetches and merges every input feeding one target,
// writing an updated status.json to statusDir under targetName.
func IngestTarget(ctx context.Context, fetcher *Fetcher, resolver *VODInfoResolver, statusDir, targetName string, inputs []config.InputConfig) (*TargetIngestResult, error) {
	result := &TargetIngestResult{}
	clusterFailed := map[catalogmodel.Cluster]bool{}
	clusterTouched := map[catalogmodel.Cluster]bool{}

	for _, input := range inputs {
		for _, eff := range expandBatch(input) {
			live, video, series, clusterErrs := ingestOne(ctx, fetcher, resolver, eff)
			result.Live = append(result.Live, live...)
			result.Video = append(result.Video, video...)
			result.Series = append(result.Series, series...)

			for cluster, errs := range clusterErrs {
				clusterTouched[cluster] = true
				if len(errs) > 0 {
					clusterFailed[cluster] = true
				}
				result.Errors = append(result.Errors, errs...)
			}
		}
	}

	doc, err := LoadStatus(statusDir, targetName)
	if err != nil {
		return result, err
	}
	now := time.Now().UTC()
	for cluster := range clusterTouched {
		state := StateOk
		if clusterFailed[cluster] {
			state = StateFailed
		}
		doc.Mark(cluster, state, now)
	}
	if err := doc.Save(statusDir, targetName); err != nil {
		return result, err
	}
	return result, nil
}

// ingestOne fetches and parses a single effective input (post batch
// expansion), returning per-cluster channels and, per cluster, any
// errors encountered resolving that cluster. Errors never abort the
// call; they're returned alongside whatever partial result was
// obtained, keyed by the cluster they affect so status.json can record
// per-cluster rather than per-input outcomes.
func ingestOne(ctx context.Context, fetcher *Fetcher, resolver *VODInfoResolver, eff effectiveInput) (live, video, series []catalogmodel.Channel, clusterErrs map[catalogmodel.Cluster][]error) {
	clusterErrs = map[catalogmodel.Cluster][]error{
		catalogmodel.ClusterLive:   nil,
		catalogmodel.ClusterVideo:  nil,
		catalogmodel.ClusterSeries: nil,
	}
	cacheDuration := time.Duration(eff.cfg.CacheDurationSecs) * time.Second

	switch eff.cfg.Kind {
	case "xtream":
		src := XtreamSource{BaseURL: eff.cfg.XtreamBaseURL, Username: eff.cfg.Username, Password: eff.cfg.Password}

		var err error
		live, err = FetchXtreamLive(ctx, fetcher, src, eff.name, "ts")
		if err != nil {
			clusterErrs[catalogmodel.ClusterLive] = append(clusterErrs[catalogmodel.ClusterLive], err)
		}
		video, err = FetchXtreamVOD(ctx, fetcher, src, eff.name)
		if err != nil {
			clusterErrs[catalogmodel.ClusterVideo] = append(clusterErrs[catalogmodel.ClusterVideo], err)
		}
		series, err = FetchXtreamSeries(ctx, fetcher, src, eff.name)
		if err != nil {
			clusterErrs[catalogmodel.ClusterSeries] = append(clusterErrs[catalogmodel.ClusterSeries], err)
		}

		if resolver != nil {
			if len(video) > 0 {
				clusterErrs[catalogmodel.ClusterVideo] = append(clusterErrs[catalogmodel.ClusterVideo],
					resolver.Resolve(ctx, eff.name, src, catalogmodel.ClusterVideo, video)...)
			}
			if len(series) > 0 {
				clusterErrs[catalogmodel.ClusterSeries] = append(clusterErrs[catalogmodel.ClusterSeries],
					resolver.Resolve(ctx, eff.name, src, catalogmodel.ClusterSeries, series)...)
			}
		}

	case "m3u":
		body, err := fetcher.FetchRaw(ctx, eff.cfg.URL, eff.cfg.Headers, cacheDuration)
		if err != nil {
			wrapped := fmt.Errorf("ingest: fetch m3u for %s: %w", eff.name, err)
			for c := range clusterErrs {
				clusterErrs[c] = append(clusterErrs[c], wrapped)
			}
			return
		}
		items, err := ParseM3U(body, eff.name)
		if err != nil {
			wrapped := fmt.Errorf("ingest: parse m3u for %s: %w", eff.name, err)
			for c := range clusterErrs {
				clusterErrs[c] = append(clusterErrs[c], wrapped)
			}
			return
		}
		for _, item := range items {
			switch item.Cluster() {
			case catalogmodel.ClusterLive:
				live = append(live, item)
			case catalogmodel.ClusterVideo:
				video = append(video, item)
			case catalogmodel.ClusterSeries:
				series = append(series, item)
			}
		}

	default:
		wrapped := fmt.Errorf("ingest: input %s: unknown kind %q", eff.name, eff.cfg.Kind)
		for c := range clusterErrs {
			clusterErrs[c] = append(clusterErrs[c], wrapped)
		}
	}
	return
}
