//go:build linux
// +build linux

package vodfs

import (
	"context"
	"encoding/hex"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/materializer"
)

// Root holds a snapshot of the Video and Series clusters plus a
// materializer; implements the root of the VODFS tree so the Video and
// Series clusters of the catalog repository are browsable read-only,
// alongside the STRM emitter. Adapted from the teacher's ad hoc
// Movie/Series catalog onto catalogmodel.Channel.
type Root struct {
	fs.Inode
	Movies         []catalogmodel.Channel // Video cluster
	Series         []catalogmodel.Channel // Series cluster
	Mat            materializer.Interface
	movieDirNames  map[string]string // assetID -> unique dir name
	showDirNames   map[string]string // show key -> unique dir name
	movieByDirName map[string]int    // unique movie dir name -> index in Movies
	showByDirName  map[string]string // unique show dir name -> show key
	episodesByShow map[string][]int // show key -> indices into Series
}

var _ fs.NodeLookuper = (*Root)(nil)

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	switch name {
	case "Movies":
		moviesNode := &MoviesDirNode{Root: r}
		ch := r.NewInode(ctx, moviesNode, fs.StableAttr{
			Mode: fuse.S_IFDIR,
			Ino:  r.ino("dir:Movies"),
		})
		out.Mode = fuse.S_IFDIR | 0755
		out.SetEntryTimeout(1 * time.Second)
		out.SetAttrTimeout(1 * time.Second)
		return ch, 0
	case "TV":
		tvNode := &TVDirNode{Root: r}
		ch := r.NewInode(ctx, tvNode, fs.StableAttr{
			Mode: fuse.S_IFDIR,
			Ino:  r.ino("dir:TV"),
		})
		out.Mode = fuse.S_IFDIR | 0755
		out.SetEntryTimeout(1 * time.Second)
		out.SetAttrTimeout(1 * time.Second)
		return ch, 0
	default:
		return nil, syscall.ENOENT
	}
}

func (r *Root) ino(key string) uint64 {
	return inoFromString("vodfs:" + key)
}

// assetID derives a stable string id for a channel from its content
// fingerprint, used as the materializer cache key.
func assetID(c *catalogmodel.Channel) string {
	return hex.EncodeToString(c.UUID[:])
}

// showKey groups a Series-cluster channel under its show, preferring
// the resolved series name the Xtream VOD-info resolver stores.
func showKey(c *catalogmodel.Channel) string {
	if s, ok := c.AdditionalProperties["series_name"]; ok && s != "" {
		return s
	}
	return c.Name
}

func (r *Root) movieDirName(m *catalogmodel.Channel) string {
	if m == nil {
		return ""
	}
	if n, ok := r.movieDirNames[assetID(m)]; ok && n != "" {
		return n
	}
	return MovieDirName(m.Title, 0)
}

func (r *Root) showDirName(key string) string {
	if n, ok := r.showDirNames[key]; ok && n != "" {
		return n
	}
	return ShowDirName(key, 0)
}

func (r *Root) buildNameIndexes() {
	r.movieDirNames = buildUniqueMovieDirNames(r.Movies)
	r.movieByDirName = make(map[string]int, len(r.Movies))
	for i := range r.Movies {
		m := &r.Movies[i]
		name := r.movieDirName(m)
		if name != "" {
			r.movieByDirName[name] = i
		}
	}

	r.episodesByShow = make(map[string][]int)
	for i := range r.Series {
		key := showKey(&r.Series[i])
		r.episodesByShow[key] = append(r.episodesByShow[key], i)
	}
	r.showDirNames = buildUniqueShowDirNames(r.episodesByShow)
	r.showByDirName = make(map[string]string, len(r.episodesByShow))
	for key := range r.episodesByShow {
		r.showByDirName[r.showDirName(key)] = key
	}
}
