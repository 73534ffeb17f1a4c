package materializer

import (
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

func TestSupportsCluster(t *testing.T) {
	cases := map[catalogmodel.Cluster]bool{
		catalogmodel.ClusterVideo:  true,
		catalogmodel.ClusterSeries: true,
		catalogmodel.ClusterLive:   false,
	}
	for cluster, want := range cases {
		if got := SupportsCluster(cluster); got != want {
			t.Errorf("SupportsCluster(%v) = %v, want %v", cluster, got, want)
		}
	}
}
