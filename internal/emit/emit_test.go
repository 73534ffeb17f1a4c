package emit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
)

func sampleLive() []catalogmodel.Channel {
	return []catalogmodel.Channel{
		{VirtualID: 1, Name: "BBC One", Title: "BBC One", Group: "News", ItemType: catalogmodel.ItemLive},
		{VirtualID: 2, Name: "ITV", Title: "ITV", Group: "General", ItemType: catalogmodel.ItemLive},
	}
}

func urlFor(c catalogmodel.Channel) string {
	return "http://gw/live/" + strOf(c.VirtualID)
}

func strOf(v uint32) string {
	return string(rune('0' + v))
}

func TestWriteM3UProducesHeaderAndEntries(t *testing.T) {
	var sb strings.Builder
	WriteM3U(&sb, sampleLive(), config.M3UOutputConfig{}, urlFor)
	out := sb.String()
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Fatalf("missing header: %q", out)
	}
	if strings.Count(out, "#EXTINF:") != 2 {
		t.Fatalf("expected 2 EXTINF lines, got %q", out)
	}
}

func TestLiveStreamsAssignsSequentialNum(t *testing.T) {
	streams := LiveStreams(sampleLive())
	if len(streams) != 2 || streams[0].Num != 1 || streams[1].Num != 2 {
		t.Fatalf("unexpected nums: %+v", streams)
	}
	if streams[0].StreamID != 1 {
		t.Fatalf("expected stream id to mirror virtual id, got %d", streams[0].StreamID)
	}
}

func TestLineupCapsAtMax(t *testing.T) {
	items := Lineup(sampleLive(), 1, urlFor)
	if len(items) != 1 {
		t.Fatalf("expected lineup capped to 1, got %d", len(items))
	}
}

func TestLineupNoCap(t *testing.T) {
	items := Lineup(sampleLive(), NoLineupCap, urlFor)
	if len(items) != 2 {
		t.Fatalf("expected uncapped lineup of 2, got %d", len(items))
	}
}

func TestWriteSTRMWritesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	channels := []catalogmodel.Channel{
		{Name: "Movie A", Title: "Movie A", ItemType: catalogmodel.ItemVideo},
	}
	cfg := config.StrmOutputConfig{Cleanup: true}
	if err := WriteSTRM(dir, channels, cfg, urlFor); err != nil {
		t.Fatalf("write: %v", err)
	}
	path := filepath.Join(dir, "Movie A.strm")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read strm: %v", err)
	}
	if !strings.Contains(string(data), "http://gw/live/") {
		t.Fatalf("unexpected strm content: %q", data)
	}

	stale := filepath.Join(dir, "Stale.strm")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}
	if err := WriteSTRM(dir, channels, cfg, urlFor); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale strm file to be removed, stat err=%v", err)
	}
}

func TestSTRMPathPerCategoryAndShowDir(t *testing.T) {
	c := catalogmodel.Channel{
		Name:  "Ep 1",
		Title: "Ep 1",
		Group: "Drama",
		ItemType: catalogmodel.ItemSeries,
		AdditionalProperties: map[string]string{"series_name": "Breaking Bad"},
	}
	cfg := config.StrmOutputConfig{PerCategoryDir: true, PerShowDir: true}
	path := strmPath("/base", c, cfg)
	want := filepath.Join("/base", "Drama", "Breaking Bad", "Ep 1.strm")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}
