// Package catalogmodel defines the canonical record shapes persisted by
// the catalog repository and shared by the ingestion, processing, and
// emitter stages: playlist items, groups, category metadata, and the
// virtual-id mapping record.
package catalogmodel

import (
	"net/url"

	"github.com/iptvgw/gateway/internal/fingerprint"
)

// ItemType is the fine-grained kind of a playlist item.
type ItemType string

const (
	ItemLive            ItemType = "live"
	ItemVideo           ItemType = "video"
	ItemSeries          ItemType = "series"
	ItemSeriesInfo      ItemType = "series_info"
	ItemLocalVideo      ItemType = "local_video"
	ItemLocalSeries     ItemType = "local_series"
	ItemLocalSeriesInfo ItemType = "local_series_info"
)

// Cluster groups item types into the three on-disk trees a target keeps.
type Cluster string

const (
	ClusterLive   Cluster = "live"
	ClusterVideo  Cluster = "video"
	ClusterSeries Cluster = "series"
)

// ClusterOf maps an item type to the cluster tree it's persisted under.
func ClusterOf(t ItemType) Cluster {
	switch t {
	case ItemLive:
		return ClusterLive
	case ItemVideo, ItemLocalVideo:
		return ClusterVideo
	case ItemSeries, ItemSeriesInfo, ItemLocalSeries, ItemLocalSeriesInfo:
		return ClusterSeries
	default:
		return ClusterVideo
	}
}

// Channel is the canonical playlist item record (spec §3).
type Channel struct {
	VirtualID             uint32            `json:"virtual_id"`
	UUID                  fingerprint.ID    `json:"uuid"`
	ProviderKey           string            `json:"provider_key"`
	ProviderID            string            `json:"provider_id"`
	Name                  string            `json:"name"`
	Title                 string            `json:"title"`
	Group                 string            `json:"group"`
	Logo                  string            `json:"logo,omitempty"`
	URL                    string            `json:"url"`
	ItemType              ItemType          `json:"item_type"`
	EPGChannelID          string            `json:"epg_channel_id,omitempty"`
	CategoryID            uint32            `json:"category_id,omitempty"`
	AdditionalProperties  map[string]string `json:"additional_properties,omitempty"`
	InputName             string            `json:"input_name"`
}

// Cluster is the tree this channel belongs to.
func (c *Channel) Cluster() Cluster { return ClusterOf(c.ItemType) }

// The following methods satisfy fingerprint.Channel.
func (c *Channel) FingerprintProviderKey() string { return c.ProviderKey }
func (c *Channel) FingerprintProviderID() string  { return c.ProviderID }
func (c *Channel) FingerprintItemType() string    { return string(c.ItemType) }
func (c *Channel) FingerprintURLPath() string     { return urlPathQueryFragment(c.URL) }

// Fingerprint computes and caches this channel's content fingerprint.
func (c *Channel) Fingerprint() fingerprint.ID {
	c.UUID = fingerprint.Of(c)
	return c.UUID
}

// Group is a named bucket of channels within one cluster, assigned a
// contiguous id per ingestion run.
type Group struct {
	ID       uint32    `json:"id"`
	Title    string    `json:"title"`
	Cluster  Cluster   `json:"cluster"`
	Channels []Channel `json:"channels"`
}

// Category is provider category metadata, contiguous per cluster.
type Category struct {
	CategoryID   uint32  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Cluster      Cluster `json:"cluster"`
}

// VirtualIDMapping is the record stored in a target's mapping tree,
// keyed externally by virtual_id.
type VirtualIDMapping struct {
	ProviderID  string         `json:"provider_id"`
	UUID        fingerprint.ID `json:"uuid"`
	ItemType    ItemType       `json:"item_type"`
	LastUpdated int64          `json:"last_updated_ts"`
}

// StreamChannel is the runtime view of a catalog record resolved at
// request time by the reverse proxy and emitters.
type StreamChannel struct {
	VirtualID  uint32   `json:"virtual_id"`
	ProviderID string   `json:"provider_id"`
	ItemType   ItemType `json:"item_type"`
	Cluster    Cluster  `json:"cluster"`
	Group      string   `json:"group"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Shared     bool     `json:"shared"`
}

// urlPathQueryFragment returns the part of a URL that identifies the
// resource rather than where to reach it: path, query and fragment. Used
// as the fingerprint fallback when a provider id is absent, so two
// differently-hosted copies of the same stream path still collide.
func urlPathQueryFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	out := u.Path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.Fragment
	}
	return out
}
