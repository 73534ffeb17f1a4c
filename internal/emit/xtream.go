package emit

import (
	"strconv"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

// XtreamStream is the widely-deployed XtreamCodes JSON shape for one
// entry in get_live_streams/get_vod_streams (spec §6, "Matches the
// widely-deployed XtreamCodes shape bit-exactly").
type XtreamStream struct {
	Num          int    `json:"num"`
	Name         string `json:"name"`
	StreamType   string `json:"stream_type"`
	StreamID     uint32 `json:"stream_id"`
	StreamIcon   string `json:"stream_icon,omitempty"`
	EPGChannelID string `json:"epg_channel_id,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
}

// XtreamSeries is one entry in get_series.
type XtreamSeries struct {
	Num        int    `json:"num"`
	Name       string `json:"name"`
	SeriesID   uint32 `json:"series_id"`
	Cover      string `json:"cover,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
}

// XtreamCategory is one entry in get_*_categories.
type XtreamCategory struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
}

// LiveStreams republishes the Live cluster as get_live_streams entries.
// Num is assigned 1..n in the order the channels are given; the slice is
// not re-sorted here. This matches the teacher's old indexer's enumeration.
func LiveStreams(channels []catalogmodel.Channel) []XtreamStream {
	out := make([]XtreamStream, 0, len(channels))
	for i, c := range channels {
		out = append(out, XtreamStream{
			Num:          i + 1,
			Name:         c.Name,
			StreamType:   "live",
			StreamID:     c.VirtualID,
			StreamIcon:   c.Logo,
			EPGChannelID: c.EPGChannelID,
			CategoryID:   strconv.FormatUint(uint64(c.CategoryID), 10),
		})
	}
	return out
}

// VODStreams republishes the Video cluster as get_vod_streams entries.
func VODStreams(channels []catalogmodel.Channel) []XtreamStream {
	out := make([]XtreamStream, 0, len(channels))
	for i, c := range channels {
		out = append(out, XtreamStream{
			Num:        i + 1,
			Name:       c.Name,
			StreamType: "movie",
			StreamID:   c.VirtualID,
			StreamIcon: c.Logo,
			CategoryID: strconv.FormatUint(uint64(c.CategoryID), 10),
		})
	}
	return out
}

// Series republishes the Series cluster as get_series entries.
func Series(channels []catalogmodel.Channel) []XtreamSeries {
	out := make([]XtreamSeries, 0, len(channels))
	for i, c := range channels {
		out = append(out, XtreamSeries{
			Num:        i + 1,
			Name:       c.Name,
			SeriesID:   c.VirtualID,
			Cover:      c.Logo,
			CategoryID: strconv.FormatUint(uint64(c.CategoryID), 10),
		})
	}
	return out
}

// Categories converts a cluster's category metadata (spec §4.4's
// category sidecar, as loaded by the caller) into a get_*_categories
// response, one entry per category in the order given.
func Categories(cats []catalogmodel.Category) []XtreamCategory {
	out := make([]XtreamCategory, 0, len(cats))
	for _, c := range cats {
		out = append(out, XtreamCategory{
			CategoryID:   strconv.FormatUint(uint64(c.CategoryID), 10),
			CategoryName: c.CategoryName,
		})
	}
	return out
}

// VODInfo republishes a single Video/Series item's extra metadata as a
// get_vod_info/get_series_info "info" object, from whatever the
// ingestion-time VOD-info resolver cached into AdditionalProperties.
func VODInfo(c catalogmodel.Channel) map[string]string {
	if c.AdditionalProperties == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(c.AdditionalProperties))
	for k, v := range c.AdditionalProperties {
		out[k] = v
	}
	return out
}
