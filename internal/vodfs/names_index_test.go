//go:build linux
// +build linux

package vodfs

import (
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/fingerprint"
)

func chanWithUUID(title string, seed byte) catalogmodel.Channel {
	c := catalogmodel.Channel{Title: title}
	var id fingerprint.ID
	id[0] = seed
	c.UUID = id
	return c
}

func TestBuildUniqueMovieDirNames_DedupesCollisions(t *testing.T) {
	movies := []catalogmodel.Channel{
		chanWithUUID("Same", 1),
		chanWithUUID("Same", 2),
		chanWithUUID("Different", 3),
	}
	got := buildUniqueMovieDirNames(movies)
	if got[assetID(&movies[2])] != "Different" {
		t.Fatalf("non-colliding movie name changed: %q", got[assetID(&movies[2])])
	}
	if got[assetID(&movies[0])] == got[assetID(&movies[1])] {
		t.Fatalf("colliding movie names not uniquified")
	}
}

func TestBuildUniqueShowDirNames_DedupesCollisions(t *testing.T) {
	episodesByShow := map[string][]int{
		"Show":   {0, 1},
		"Other":  {2},
	}
	got := buildUniqueShowDirNames(episodesByShow)
	if got["Other"] != "Other" {
		t.Fatalf("non-colliding show name changed: %q", got["Other"])
	}
	if got["Show"] == "" {
		t.Fatalf("missing show dir name")
	}
}
