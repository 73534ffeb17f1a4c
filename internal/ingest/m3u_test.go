package ingest

import (
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="bbc1.uk" tvg-logo="http://x/bbc.png" group-title="UK",BBC One
#EXTVLCOPT:http-user-agent=CustomAgent/1.0
http://provider.example/live/1.ts
#EXTINF:-1 group-title="Movies",Inception (2010)
http://provider.example/movie/1.mp4
#EXTINF:-1 group-title="Shows",Breaking Bad S01E02
http://provider.example/series/1.mp4
`

func TestParseM3UClassifiesClusters(t *testing.T) {
	channels, err := ParseM3U([]byte(samplePlaylist), "in1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(channels) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(channels))
	}

	live := channels[0]
	if live.ItemType != catalogmodel.ItemLive || live.Title != "BBC One" {
		t.Fatalf("live = %+v", live)
	}
	if live.EPGChannelID != "bbc1.uk" || live.Logo != "http://x/bbc.png" || live.Group != "UK" {
		t.Fatalf("live attrs = %+v", live)
	}
	if live.AdditionalProperties["http_user_agent"] != "CustomAgent/1.0" {
		t.Fatalf("expected EXTVLCOPT user agent captured, got %+v", live.AdditionalProperties)
	}

	movie := channels[1]
	if movie.ItemType != catalogmodel.ItemVideo || movie.Title != "Inception (2010)" {
		t.Fatalf("movie = %+v", movie)
	}

	series := channels[2]
	if series.ItemType != catalogmodel.ItemSeries {
		t.Fatalf("series = %+v", series)
	}
	if series.AdditionalProperties["season"] != "1" || series.AdditionalProperties["episode"] != "2" {
		t.Fatalf("series season/episode = %+v", series.AdditionalProperties)
	}
}

func TestSplitTitleYear(t *testing.T) {
	title, year := splitTitleYear("Inception (2010)")
	if title != "Inception" || year != 2010 {
		t.Fatalf("got %q, %d", title, year)
	}
	title, year = splitTitleYear("BBC One")
	if title != "BBC One" || year != 0 {
		t.Fatalf("got %q, %d", title, year)
	}
}

func TestSeasonEpisode(t *testing.T) {
	s, e, ok := seasonEpisode("Breaking Bad S01E02")
	if !ok || s != 1 || e != 2 {
		t.Fatalf("got s=%d e=%d ok=%v", s, e, ok)
	}
	if _, _, ok := seasonEpisode("BBC One"); ok {
		t.Fatalf("expected no season/episode match")
	}
}
