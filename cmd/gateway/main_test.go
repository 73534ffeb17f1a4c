package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iptvgw/gateway/internal/activeprovider"
	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
)

func TestClusterPathSegment(t *testing.T) {
	tests := map[catalogmodel.Cluster]string{
		catalogmodel.ClusterLive:   "live",
		catalogmodel.ClusterVideo:  "movie",
		catalogmodel.ClusterSeries: "series",
	}
	for cluster, want := range tests {
		if got := clusterPathSegment(cluster); got != want {
			t.Errorf("clusterPathSegment(%q) = %q, want %q", cluster, got, want)
		}
	}
}

func TestGatewayStreamURL(t *testing.T) {
	g := &gateway{cfg: &config.Config{
		API:   config.APIConfig{Host: "127.0.0.1", Port: 8080},
		Video: config.VideoConfig{Extension: "ts"},
	}}
	build := g.streamURL("news")
	url := build(catalogmodel.Channel{VirtualID: 42, ItemType: "live"})
	want := "http://127.0.0.1:8080/live/hdhomerun/news/42.ts?target=news"
	if url != want {
		t.Fatalf("streamURL = %q, want %q", url, want)
	}
}

func TestGatewayStreamURL_DefaultsExtensionToTS(t *testing.T) {
	g := &gateway{cfg: &config.Config{API: config.APIConfig{Host: "h", Port: 1}}}
	url := g.streamURL("t")(catalogmodel.Channel{VirtualID: 1, ItemType: "movie"})
	if got := url[len(url)-len("1.ts?target=t"):]; got != "1.ts?target=t" {
		t.Fatalf("streamURL with empty Extension = %q, want suffix 1.ts?target=t", url)
	}
}

func TestVodInfoConcurrency(t *testing.T) {
	groups := []config.SourceGroup{
		{Inputs: []config.InputConfig{{VODInfoConcurrency: 8}, {VODInfoConcurrency: 2}}},
		{Inputs: []config.InputConfig{{VODInfoConcurrency: 0}}},
	}
	if got := vodInfoConcurrency(groups); got != 2 {
		t.Fatalf("vodInfoConcurrency = %d, want 2 (smallest explicit setting)", got)
	}
}

func TestVodInfoConcurrency_DefaultsWhenUnset(t *testing.T) {
	if got := vodInfoConcurrency(nil); got != 4 {
		t.Fatalf("vodInfoConcurrency(nil) = %d, want default 4", got)
	}
}

func TestVodInfoDelay(t *testing.T) {
	groups := []config.SourceGroup{
		{Inputs: []config.InputConfig{{VODInfoDelayMillis: 100}, {VODInfoDelayMillis: 500}}},
	}
	if got := vodInfoDelay(groups); got.Milliseconds() != 500 {
		t.Fatalf("vodInfoDelay = %v, want 500ms (largest explicit setting)", got)
	}
}

func TestVodInfoDelay_DefaultsWhenUnset(t *testing.T) {
	if got := vodInfoDelay(nil); got.Milliseconds() != 250 {
		t.Fatalf("vodInfoDelay(nil) = %v, want default 250ms", got)
	}
}

func TestAssignCategories(t *testing.T) {
	byCluster := map[catalogmodel.Cluster][]catalogmodel.Channel{
		catalogmodel.ClusterLive: {
			{Group: "News"},
			{Group: "News"},
			{Group: "Sports"},
			{Group: ""},
		},
	}
	cats := assignCategories(byCluster)
	if len(cats) != 2 {
		t.Fatalf("assignCategories returned %d categories, want 2 (blank group skipped, dupes collapsed)", len(cats))
	}
	byName := map[string]catalogmodel.Category{}
	for _, c := range cats {
		byName[c.CategoryName] = c
	}
	news, ok := byName["News"]
	if !ok || news.CategoryID != 1 {
		t.Fatalf("News category = %+v, want CategoryID 1", news)
	}
	sports, ok := byName["Sports"]
	if !ok || sports.CategoryID != 2 {
		t.Fatalf("Sports category = %+v, want CategoryID 2", sports)
	}
	if news.Cluster != catalogmodel.ClusterLive || sports.Cluster != catalogmodel.ClusterLive {
		t.Fatalf("categories not tagged with source cluster: %+v %+v", news, sports)
	}

	channels := byCluster[catalogmodel.ClusterLive]
	if channels[0].CategoryID != 1 || channels[1].CategoryID != 1 {
		t.Fatalf("News channels not stamped with CategoryID 1: %+v %+v", channels[0], channels[1])
	}
	if channels[2].CategoryID != 2 {
		t.Fatalf("Sports channel not stamped with CategoryID 2: %+v", channels[2])
	}
	if channels[3].CategoryID != 0 {
		t.Fatalf("blank-group channel should keep CategoryID 0, got %d", channels[3].CategoryID)
	}
}

func TestRePriceByReachability(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer down.Close()

	aliases := []activeprovider.Alias{
		{ID: "up", Priority: 0, URL: up.URL},
		{ID: "down", Priority: 0, URL: down.URL},
	}
	urls := []string{up.URL, down.URL}
	rePriceByReachability(context.Background(), aliases, urls, up.Client())

	if aliases[0].Priority != 0 {
		t.Errorf("reachable alias priority changed: got %d, want 0", aliases[0].Priority)
	}
	if aliases[1].Priority <= aliases[0].Priority {
		t.Errorf("unreachable alias priority = %d, want it pushed behind reachable alias %d", aliases[1].Priority, aliases[0].Priority)
	}
}

func TestGatewayHDHomeRunBaseURLs(t *testing.T) {
	g := &gateway{cfg: &config.Config{
		API:       config.APIConfig{Host: "127.0.0.1"},
		HDHomeRun: []config.HDHomeRunDevice{{Port: 5004}, {Port: 5005}},
	}}
	urls := g.hdhomerunBaseURLs()
	want := []string{"http://127.0.0.1:5004", "http://127.0.0.1:5005"}
	if len(urls) != len(want) {
		t.Fatalf("hdhomerunBaseURLs = %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("hdhomerunBaseURLs[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestGatewayHDHomeRunBaseURLs_DefaultsUnboundHost(t *testing.T) {
	g := &gateway{cfg: &config.Config{
		API:       config.APIConfig{Host: "0.0.0.0"},
		HDHomeRun: []config.HDHomeRunDevice{{Port: 5004}},
	}}
	if got := g.hdhomerunBaseURLs(); got[0] != "http://127.0.0.1:5004" {
		t.Fatalf("hdhomerunBaseURLs = %v, want loopback substituted for 0.0.0.0", got)
	}
}

func TestGatewayTargetConfig(t *testing.T) {
	g := &gateway{targets: []config.TargetConfig{{Name: "a"}, {Name: "b"}}}
	if _, ok := g.targetConfig("b"); !ok {
		t.Fatal("expected to find target \"b\"")
	}
	if _, ok := g.targetConfig("missing"); ok {
		t.Fatal("expected targetConfig to report false for an unknown target")
	}
}
