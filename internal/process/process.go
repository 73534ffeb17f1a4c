// Package process turns a target's ingested channels into its
// persisted catalog trees (spec §4.7): assign stable virtual ids, run
// the configured filter/rename/map pipeline, deduplicate by
// fingerprint, sort groups and channels, and persist each cluster.
// Two runs over identical inputs, with the target's mapping tree
// preserved between them, produce bit-identical persisted trees.
package process

import (
	"context"
	"fmt"
	"regexp"

	"github.com/iptvgw/gateway/internal/catalog"
	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
	"github.com/iptvgw/gateway/internal/filter"
	"github.com/iptvgw/gateway/internal/fingerprint"
	"github.com/iptvgw/gateway/internal/mapper"
)

// Stage names recognized in TargetConfig.ProcessingOrder.
const (
	StageFilter = "filter"
	StageRename = "rename"
	StageMap    = "map"
)

func defaultOrder() []string { return []string{StageFilter, StageRename, StageMap} }

// compiledRename is one RenameRule with its pattern precompiled.
type compiledRename struct {
	field   string
	re      *regexp.Regexp
	replace string
}

// compiledTarget holds everything derived once per RunTarget call from
// a TargetConfig's textual filter/mapper/rename configuration.
type compiledTarget struct {
	order     []string
	filter    *filter.Filter
	mapper    *mapper.Script
	renames   []compiledRename
	asciiFold bool
	sort      config.SortConfig
}

// compileTarget expands templates and parses a target's filter, rename
// and mapper configuration.
func compileTarget(tc config.TargetConfig, templates []config.Template) (*compiledTarget, error) {
	order := tc.ProcessingOrder
	if len(order) == 0 {
		order = defaultOrder()
	}
	if err := validateOrder(order); err != nil {
		return nil, err
	}

	ct := &compiledTarget{order: order, asciiFold: tc.MatchAsASCII, sort: tc.Sort}
	ftpl := toFilterTemplates(templates)

	if tc.Filter != "" {
		src, err := filter.ExpandTemplates(tc.Filter, ftpl)
		if err != nil {
			return nil, fmt.Errorf("process: target %s: expand filter templates: %w", tc.Name, err)
		}
		f, err := filter.Parse(src, tc.MatchAsASCII)
		if err != nil {
			return nil, fmt.Errorf("process: target %s: parse filter: %w", tc.Name, err)
		}
		ct.filter = f
	}

	if tc.Mapper != "" {
		src, err := filter.ExpandTemplates(tc.Mapper, ftpl)
		if err != nil {
			return nil, fmt.Errorf("process: target %s: expand mapper templates: %w", tc.Name, err)
		}
		m, err := mapper.Parse(src, tc.MatchAsASCII)
		if err != nil {
			return nil, fmt.Errorf("process: target %s: parse mapper: %w", tc.Name, err)
		}
		ct.mapper = m
	}

	for _, rule := range tc.Rename {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("process: target %s: rename pattern %q: %w", tc.Name, rule.Pattern, err)
		}
		ct.renames = append(ct.renames, compiledRename{field: rule.Field, re: re, replace: rule.Replace})
	}

	return ct, nil
}

func validateOrder(order []string) error {
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		switch name {
		case StageFilter, StageRename, StageMap:
		default:
			return fmt.Errorf("process: unknown processing_order stage %q", name)
		}
		if seen[name] {
			return fmt.Errorf("process: processing_order stage %q repeated", name)
		}
		seen[name] = true
	}
	return nil
}

func toFilterTemplates(templates []config.Template) []filter.Template {
	out := make([]filter.Template, len(templates))
	for i, t := range templates {
		out[i] = filter.Template{Name: t.Name, Value: t.Value}
	}
	return out
}

// applyRenames runs every compiled rename rule against c's current
// field values, left to right.
func applyRenames(renames []compiledRename, c *catalogmodel.Channel) {
	for _, r := range renames {
		cur := fieldValue(r.field, c)
		setField(r.field, c, r.re.ReplaceAllString(cur, r.replace))
	}
}

func fieldValue(field string, c *catalogmodel.Channel) string {
	switch field {
	case "group":
		return c.Group
	case "name":
		return c.Name
	case "title":
		return c.Title
	case "url":
		return c.URL
	default:
		return ""
	}
}

func setField(field string, c *catalogmodel.Channel, v string) {
	switch field {
	case "group":
		c.Group = v
	case "name":
		c.Name = v
	case "title":
		c.Title = v
	case "url":
		c.URL = v
	}
}

// runStages applies the compiled filter/rename/map pipeline to c in
// ct.order, returning false as soon as the filter stage excludes it.
func runStages(ct *compiledTarget, c *catalogmodel.Channel) bool {
	for _, stage := range ct.order {
		switch stage {
		case StageFilter:
			if ct.filter != nil && !filter.Eval(ct.filter, c, ct.asciiFold) {
				return false
			}
		case StageRename:
			applyRenames(ct.renames, c)
		case StageMap:
			if ct.mapper != nil {
				mapper.Apply(*ct.mapper, c, ct.asciiFold)
			}
		}
	}
	return true
}

// RunTarget processes one target's freshly ingested channels end to
// end: filter/rename/map, virtual-id assignment, dedup, sort and
// persist. live, video and series are the channels ingestion produced
// for this target, already split by cluster; RunTarget returns the
// same split after processing, which callers hand to the emitters.
func RunTarget(ctx context.Context, repo *catalog.Repository, tc config.TargetConfig, templates []config.Template, live, video, series []catalogmodel.Channel, now int64) (map[catalogmodel.Cluster][]catalogmodel.Channel, error) {
	ct, err := compileTarget(tc, templates)
	if err != nil {
		return nil, err
	}

	all := make([]catalogmodel.Channel, 0, len(live)+len(video)+len(series))
	all = append(all, live...)
	all = append(all, video...)
	all = append(all, series...)

	kept := make([]catalogmodel.Channel, 0, len(all))
	for i := range all {
		c := all[i]
		if runStages(ct, &c) {
			kept = append(kept, c)
		}
	}

	deduped := dedupByFingerprint(kept)

	if err := repo.AssignVirtualIDs(ctx, tc.Name, deduped, now); err != nil {
		return nil, fmt.Errorf("process: target %s: assign virtual ids: %w", tc.Name, err)
	}

	byCluster := map[catalogmodel.Cluster][]catalogmodel.Channel{
		catalogmodel.ClusterLive:   nil,
		catalogmodel.ClusterVideo:  nil,
		catalogmodel.ClusterSeries: nil,
	}
	for i := range deduped {
		cl := deduped[i].Cluster()
		byCluster[cl] = append(byCluster[cl], deduped[i])
	}

	for cl, channels := range byCluster {
		byCluster[cl] = sortChannels(channels, ct.sort)
	}

	for cl, channels := range byCluster {
		if err := repo.Persist(ctx, tc.Name, cl, channels); err != nil {
			return nil, fmt.Errorf("process: target %s: persist %s: %w", tc.Name, cl, err)
		}
	}

	return byCluster, nil
}

// dedupByFingerprint collapses channels sharing a content fingerprint
// into their first occurrence, preserving relative order.
func dedupByFingerprint(channels []catalogmodel.Channel) []catalogmodel.Channel {
	seen := make(map[fingerprint.ID]bool, len(channels))
	out := make([]catalogmodel.Channel, 0, len(channels))
	for i := range channels {
		id := channels[i].Fingerprint()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, channels[i])
	}
	return out
}
