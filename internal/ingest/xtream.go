package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/fetchcache"
)

// XtreamSource names the player_api.php endpoint an input authenticates
// against.
type XtreamSource struct {
	BaseURL  string
	Username string
	Password string
}

func (s XtreamSource) apiURL(action string) string {
	base := strings.TrimSuffix(s.BaseURL, "/")
	u := base + "/player_api.php?username=" + url.QueryEscape(s.Username) +
		"&password=" + url.QueryEscape(s.Password)
	if action != "" {
		u += "&action=" + action
	}
	return u
}

func (s XtreamSource) streamURL(kind, providerID, ext string) string {
	base := strings.TrimSuffix(s.BaseURL, "/")
	if ext == "" {
		ext = "ts"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", base, kind, s.Username, s.Password, providerID, ext)
}

// FetchXtreamLive retrieves the live stream list from src.
func FetchXtreamLive(ctx context.Context, f *Fetcher, src XtreamSource, inputName, ext string) ([]catalogmodel.Channel, error) {
	body, err := f.FetchRaw(ctx, src.apiURL("get_live_streams"), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch live streams for %s: %w", inputName, err)
	}
	var raw []struct {
		Name         string `json:"name"`
		StreamID     int    `json:"stream_id"`
		EPGChannelID string `json:"epg_channel_id"`
		StreamIcon   string `json:"stream_icon"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("ingest: parse live streams for %s: %w", inputName, err)
	}
	out := make([]catalogmodel.Channel, 0, len(raw))
	for _, r := range raw {
		providerID := strconv.Itoa(r.StreamID)
		out = append(out, catalogmodel.Channel{
			ProviderKey:  inputName,
			ProviderID:   providerID,
			Name:         r.Name,
			Title:        r.Name,
			Logo:         r.StreamIcon,
			URL:          src.streamURL("live", providerID, ext),
			ItemType:     catalogmodel.ItemLive,
			EPGChannelID: r.EPGChannelID,
			InputName:    inputName,
		})
	}
	return out, nil
}

// FetchXtreamVOD retrieves the VOD (movie) stream list from src. Per-item
// extra info (plot, duration, rating, ...) is not populated here; call
// (*VODInfoResolver).Resolve afterwards.
func FetchXtreamVOD(ctx context.Context, f *Fetcher, src XtreamSource, inputName string) ([]catalogmodel.Channel, error) {
	body, err := f.FetchRaw(ctx, src.apiURL("get_vod_streams"), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch vod streams for %s: %w", inputName, err)
	}
	var raw []struct {
		StreamID   int    `json:"stream_id"`
		Name       string `json:"name"`
		Container  string `json:"container_extension"`
		StreamIcon string `json:"stream_icon"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("ingest: parse vod streams for %s: %w", inputName, err)
	}
	out := make([]catalogmodel.Channel, 0, len(raw))
	for _, r := range raw {
		providerID := strconv.Itoa(r.StreamID)
		out = append(out, catalogmodel.Channel{
			ProviderKey: inputName,
			ProviderID:  providerID,
			Name:        r.Name,
			Title:       r.Name,
			Logo:        r.StreamIcon,
			URL:         src.streamURL("movie", providerID, r.Container),
			ItemType:    catalogmodel.ItemVideo,
			InputName:   inputName,
		})
	}
	return out, nil
}

// FetchXtreamSeries retrieves the series list from src. Episodes are
// resolved separately via the lazy get_series_info call in Resolve.
func FetchXtreamSeries(ctx context.Context, f *Fetcher, src XtreamSource, inputName string) ([]catalogmodel.Channel, error) {
	body, err := f.FetchRaw(ctx, src.apiURL("get_series"), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch series for %s: %w", inputName, err)
	}
	var raw []struct {
		SeriesID int    `json:"series_id"`
		Name     string `json:"name"`
		Cover    string `json:"cover"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("ingest: parse series for %s: %w", inputName, err)
	}
	out := make([]catalogmodel.Channel, 0, len(raw))
	for _, r := range raw {
		providerID := strconv.Itoa(r.SeriesID)
		out = append(out, catalogmodel.Channel{
			ProviderKey: inputName,
			ProviderID:  providerID,
			Name:        r.Name,
			Title:       r.Name,
			Logo:        r.Cover,
			ItemType:    catalogmodel.ItemSeriesInfo,
			InputName:   inputName,
		})
	}
	return out, nil
}

// VODInfoResolver lazily resolves per-item Xtream get_vod_info /
// get_series_info metadata, bounding concurrent requests and spacing
// them out to avoid tripping a provider's rate limiter. Results are
// cached by (input, provider id) so subsequent runs skip items already
// resolved.
type VODInfoResolver struct {
	Fetcher     *Fetcher
	Cache       *fetchcache.Store
	Concurrency int
	Delay       time.Duration
}

// Resolve populates AdditionalProperties on each channel in items by
// fetching get_vod_info (cluster == Video) or get_series_info (cluster
// == Series) for items whose provider id is not already cached. Errors
// for individual items are collected and returned together rather than
// aborting the whole batch; callers should accumulate these into the
// per-input error vector.
func (r *VODInfoResolver) Resolve(ctx context.Context, inputName string, src XtreamSource, cluster catalogmodel.Cluster, items []catalogmodel.Channel) []error {
	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for i := range items {
		item := &items[i]
		if payload, _, ok, err := r.Cache.LookupVODInfo(inputName+"/"+string(cluster), item.ProviderID); err == nil && ok {
			applyInfoPayload(item, payload)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(item *catalogmodel.Channel) {
			defer wg.Done()
			defer func() { <-sem }()

			action := "get_vod_info"
			if cluster == catalogmodel.ClusterSeries {
				action = "get_series_info"
			}
			idParam := "vod_id"
			if cluster == catalogmodel.ClusterSeries {
				idParam = "series_id"
			}
			u := src.apiURL(action) + "&" + idParam + "=" + item.ProviderID
			body, err := r.Fetcher.FetchRaw(ctx, u, nil, 0)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("ingest: resolve %s for %s/%s: %w", action, inputName, item.ProviderID, err))
				mu.Unlock()
				return
			}
			applyInfoPayload(item, body)
			if r.Cache != nil {
				_ = r.Cache.StoreVODInfo(inputName+"/"+string(cluster), item.ProviderID, body, time.Now().UTC())
			}
		}(item)

		if r.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.Delay):
			}
		}
	}
	wg.Wait()
	return errs
}

// applyInfoPayload flattens a get_vod_info/get_series_info JSON "info"
// object into string-valued additional properties.
func applyInfoPayload(item *catalogmodel.Channel, payload []byte) {
	var doc struct {
		Info map[string]json.RawMessage `json:"info"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return
	}
	if item.AdditionalProperties == nil {
		item.AdditionalProperties = map[string]string{}
	}
	for k, v := range doc.Info {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			item.AdditionalProperties[k] = s
			continue
		}
		item.AdditionalProperties[k] = string(v)
	}
}
