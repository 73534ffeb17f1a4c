//go:build linux
// +build linux

package vodfs

import (
	"context"
	"sort"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// TVDirNode lists show folders, one per distinct show key among the
// Series cluster's channels.
type TVDirNode struct {
	fs.Inode
	Root *Root
}

var _ fs.NodeReaddirer = (*TVDirNode)(nil)
var _ fs.NodeLookuper = (*TVDirNode)(nil)

func (n *TVDirNode) sortedShowDirNames() []string {
	names := make([]string, 0, len(n.Root.showByDirName))
	for name := range n.Root.showByDirName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *TVDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names := n.sortedShowDirNames()
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		key := n.Root.showByDirName[name]
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Ino:  n.Root.ino("show:" + key),
			Mode: fuse.S_IFDIR | 0755,
		})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *TVDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	key, ok := n.Root.showByDirName[name]
	if !ok {
		return nil, syscall.ENOENT
	}
	child := &ShowDirNode{Root: n.Root, ShowKey: key}
	ch := n.NewInode(ctx, child, fs.StableAttr{
		Mode: fuse.S_IFDIR,
		Ino:  n.Root.ino("show:" + key),
	})
	out.Mode = fuse.S_IFDIR | 0755
	out.SetEntryTimeout(1 * time.Second)
	out.SetAttrTimeout(1 * time.Second)
	return ch, 0
}

// ShowDirNode is a show folder containing its episodes directly (the
// catalog carries episodes as flat Series-cluster channels with no
// season/episode numbering, so unlike the teacher's Plex-DVR layout
// there is no intermediate "Season NN" level).
type ShowDirNode struct {
	fs.Inode
	Root    *Root
	ShowKey string
}

var _ fs.NodeReaddirer = (*ShowDirNode)(nil)
var _ fs.NodeLookuper = (*ShowDirNode)(nil)

func (n *ShowDirNode) episodeFileName(idx int) string {
	ep := &n.Root.Series[idx]
	return EpisodeFileNameForStream(n.ShowKey, 0, ep.Title, ep.URL)
}

func (n *ShowDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	indices := n.Root.episodesByShow[n.ShowKey]
	entries := make([]fuse.DirEntry, 0, len(indices))
	for _, idx := range indices {
		ep := &n.Root.Series[idx]
		entries = append(entries, fuse.DirEntry{
			Name: n.episodeFileName(idx),
			Ino:  n.Root.ino("file:ep:" + assetID(ep)),
			Mode: fuse.S_IFREG | 0444,
		})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *ShowDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	for _, idx := range n.Root.episodesByShow[n.ShowKey] {
		if n.episodeFileName(idx) != name {
			continue
		}
		ep := &n.Root.Series[idx]
		vf := &VirtualFileNode{
			Root:      n.Root,
			AssetID:   assetID(ep),
			StreamURL: ep.URL,
			Size:      0,
		}
		ch := n.NewInode(ctx, vf, fs.StableAttr{
			Mode: fuse.S_IFREG,
			Ino:  n.Root.ino("file:ep:" + assetID(ep)),
		})
		out.Mode = fuse.S_IFREG | 0444
		out.Size = vf.placeholderSize()
		out.SetEntryTimeout(1 * time.Second)
		out.SetAttrTimeout(1 * time.Second)
		return ch, 0
	}
	return nil, syscall.ENOENT
}
