//go:build linux
// +build linux

package vodfs

import (
	"fmt"
	"sort"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

func buildUniqueMovieDirNames(movies []catalogmodel.Channel) map[string]string {
	baseCounts := make(map[string]int, len(movies))
	for i := range movies {
		baseCounts[MovieDirName(movies[i].Title, 0)]++
	}
	out := make(map[string]string, len(movies))
	for i := range movies {
		m := &movies[i]
		base := MovieDirName(m.Title, 0)
		id := assetID(m)
		if baseCounts[base] <= 1 {
			out[id] = base
			continue
		}
		out[id] = fmt.Sprintf("%s [%s]", base, id[:8])
	}
	return out
}

// buildUniqueShowDirNames assigns a unique directory name per show key
// (collisions are only possible if two distinct show keys normalize to
// the same display name, which ShowDirName's sanitizing can cause).
func buildUniqueShowDirNames(episodesByShow map[string][]int) map[string]string {
	keys := make([]string, 0, len(episodesByShow))
	for k := range episodesByShow {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	baseCounts := make(map[string]int, len(keys))
	for _, k := range keys {
		baseCounts[ShowDirName(k, 0)]++
	}
	out := make(map[string]string, len(keys))
	seen := make(map[string]int, len(keys))
	for _, k := range keys {
		base := ShowDirName(k, 0)
		if baseCounts[base] <= 1 {
			out[k] = base
			continue
		}
		seen[base]++
		out[k] = fmt.Sprintf("%s [%d]", base, seen[base])
	}
	return out
}
