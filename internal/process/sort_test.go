package process

import (
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
)

func chanAt(name, group string) catalogmodel.Channel {
	return catalogmodel.Channel{Name: name, Title: name, Group: group}
}

func TestSortChannelsGroupAscendingDefault(t *testing.T) {
	in := []catalogmodel.Channel{chanAt("a", "Zeta"), chanAt("b", "Alpha")}
	out := sortChannels(in, config.SortConfig{Groups: &config.SortGroupConfig{Order: "asc"}})
	if out[0].Group != "Alpha" || out[1].Group != "Zeta" {
		t.Fatalf("unexpected order: %v, %v", out[0].Group, out[1].Group)
	}
}

func TestSortChannelsWithinGroupBySequence(t *testing.T) {
	in := []catalogmodel.Channel{
		chanAt("Channel 9", "G"),
		chanAt("Channel 1", "G"),
		chanAt("Channel 5", "G"),
	}
	cfg := config.SortConfig{
		Channels: []config.SortChannelConfig{
			{Field: "name", Sequence: []string{"Channel 1$", "Channel 5$", "Channel 9$"}},
		},
	}
	out := sortChannels(in, cfg)
	if out[0].Name != "Channel 1" || out[1].Name != "Channel 5" || out[2].Name != "Channel 9" {
		t.Fatalf("unexpected order: %v", out)
	}
}

func TestSortChannelsRuleScopedByGroupPattern(t *testing.T) {
	in := []catalogmodel.Channel{
		chanAt("b", "Sports"),
		chanAt("a", "Sports"),
		chanAt("b", "News"),
		chanAt("a", "News"),
	}
	cfg := config.SortConfig{
		Channels: []config.SortChannelConfig{
			{Field: "name", GroupPattern: "^Sports$", Order: "asc"},
		},
	}
	out := sortChannels(in, cfg)
	var sportsNames, newsNames []string
	for _, c := range out {
		if c.Group == "Sports" {
			sportsNames = append(sportsNames, c.Name)
		} else {
			newsNames = append(newsNames, c.Name)
		}
	}
	if sportsNames[0] != "a" || sportsNames[1] != "b" {
		t.Fatalf("expected sports sorted ascending, got %v", sportsNames)
	}
	if newsNames[0] != "b" || newsNames[1] != "a" {
		t.Fatalf("expected news left in original order, got %v", newsNames)
	}
}

func TestRankBySequenceNoMatch(t *testing.T) {
	patterns := compileAll([]string{"^X$"})
	if rank, matched := rankBySequence("Y", patterns); matched || rank != 0 {
		t.Fatalf("expected no match, got rank=%d matched=%v", rank, matched)
	}
}
