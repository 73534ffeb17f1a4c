package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/filelock"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	return New(t.TempDir(), filelock.NewManager())
}

func TestAssignVirtualIDsStableAcrossRuns(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	make1 := func() []catalogmodel.Channel {
		return []catalogmodel.Channel{{
			ProviderID: "4242",
			ItemType:   catalogmodel.ItemLive,
			URL:        "http://p/live/u/p/42.ts",
			InputName:  "in1",
		}}
	}

	run1 := make1()
	if err := repo.AssignVirtualIDs(ctx, "t1", run1, 1000); err != nil {
		t.Fatalf("assign run1: %v", err)
	}
	if run1[0].VirtualID != 1 {
		t.Fatalf("expected virtual_id 1, got %d", run1[0].VirtualID)
	}

	// Item removed in run2 (empty channel list); mapping tree still holds it.
	if err := repo.AssignVirtualIDs(ctx, "t1", nil, 1001); err != nil {
		t.Fatalf("assign run2: %v", err)
	}

	run3 := make1()
	if err := repo.AssignVirtualIDs(ctx, "t1", run3, 1002); err != nil {
		t.Fatalf("assign run3: %v", err)
	}
	if run3[0].VirtualID != 1 {
		t.Fatalf("expected stable virtual_id 1 on re-add, got %d", run3[0].VirtualID)
	}
}

func TestAssignVirtualIDsNewItemsGetNextID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first := []catalogmodel.Channel{
		{ProviderID: "1", ItemType: catalogmodel.ItemLive, URL: "http://p/a", InputName: "in1"},
		{ProviderID: "2", ItemType: catalogmodel.ItemLive, URL: "http://p/b", InputName: "in1"},
	}
	if err := repo.AssignVirtualIDs(ctx, "t1", first, 1); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if first[0].VirtualID == first[1].VirtualID {
		t.Fatalf("expected distinct virtual ids, got %d and %d", first[0].VirtualID, first[1].VirtualID)
	}

	second := []catalogmodel.Channel{
		first[0],
		{ProviderID: "3", ItemType: catalogmodel.ItemLive, URL: "http://p/c", InputName: "in1"},
	}
	if err := repo.AssignVirtualIDs(ctx, "t1", second, 2); err != nil {
		t.Fatalf("assign2: %v", err)
	}
	if second[0].VirtualID != first[0].VirtualID {
		t.Fatalf("existing item changed virtual id: %d -> %d", first[0].VirtualID, second[0].VirtualID)
	}
	if second[1].VirtualID == second[0].VirtualID {
		t.Fatalf("new item collided with existing virtual id")
	}
}

func TestPersistAndIterOrderedByVirtualID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	channels := []catalogmodel.Channel{
		{VirtualID: 3, Title: "C", ItemType: catalogmodel.ItemLive},
		{VirtualID: 1, Title: "A", ItemType: catalogmodel.ItemLive},
		{VirtualID: 2, Title: "B", ItemType: catalogmodel.ItemLive},
	}
	if err := repo.Persist(ctx, "t1", catalogmodel.ClusterLive, channels); err != nil {
		t.Fatalf("persist: %v", err)
	}

	out, err := repo.Iter(ctx, "t1", catalogmodel.ClusterLive)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(out))
	}
	for i, want := range []string{"A", "B", "C"} {
		if out[i].Title != want {
			t.Fatalf("iter[%d] = %q, want %q", i, out[i].Title, want)
		}
	}
}

func TestGetByVirtualID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	channels := []catalogmodel.Channel{
		{VirtualID: 1, Title: "Only", ItemType: catalogmodel.ItemVideo},
	}
	if err := repo.Persist(ctx, "t1", catalogmodel.ClusterVideo, channels); err != nil {
		t.Fatalf("persist: %v", err)
	}
	ch, ok, err := repo.GetByVirtualID(ctx, "t1", catalogmodel.ClusterVideo, 1)
	if err != nil || !ok {
		t.Fatalf("get: %v, %v", err, ok)
	}
	if ch.Title != "Only" {
		t.Fatalf("got %+v", ch)
	}
	if _, ok, err := repo.GetByVirtualID(ctx, "t1", catalogmodel.ClusterVideo, 99); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestIterMissingFileReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	out, err := repo.Iter(ctx, "never-persisted", catalogmodel.ClusterLive)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty stream, got %d", len(out))
	}
}

func TestCategoriesRoundTripSortedDeterministically(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cats := []catalogmodel.Category{
		{CategoryID: 2, CategoryName: "News", Cluster: catalogmodel.ClusterLive},
		{CategoryID: 1, CategoryName: "Sports", Cluster: catalogmodel.ClusterLive},
		{CategoryID: 1, CategoryName: "Action", Cluster: catalogmodel.ClusterVideo},
	}
	if err := repo.SaveCategories(ctx, "t1", cats); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := repo.LoadCategories(ctx, "t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(loaded))
	}
	if loaded[0].Cluster != catalogmodel.ClusterLive || loaded[0].CategoryID != 1 {
		t.Fatalf("expected live/1 first, got %+v", loaded[0])
	}
}

func TestClusterPathNaming(t *testing.T) {
	repo := New("/data", filelock.NewManager())
	got := repo.clusterPath("myTarget", catalogmodel.ClusterLive)
	want := filepath.Join("/data", "myTarget_live.db")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
