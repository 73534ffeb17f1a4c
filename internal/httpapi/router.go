// Package httpapi mounts the gateway's HTTP surface (spec §6): the
// Xtream-compatible player_api.php and streaming routes, JWT-guarded
// management endpoints, the /ws event hub, and /metrics.
package httpapi

import (
	"net/http"

	"github.com/iptvgw/gateway/internal/activeuser"
	"github.com/iptvgw/gateway/internal/authtoken"
	"github.com/iptvgw/gateway/internal/catalog"
	"github.com/iptvgw/gateway/internal/config"
	"github.com/iptvgw/gateway/internal/credentials"
	"github.com/iptvgw/gateway/internal/emit"
	"github.com/iptvgw/gateway/internal/reverseproxy"
	"github.com/iptvgw/gateway/internal/wsapi"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the server's collaborators, assembled by cmd/gateway.
type Deps struct {
	Catalog     *catalog.Repository
	Credentials *credentials.Store
	Streams     map[string]*reverseproxy.Handler // by target name
	Tokens      *authtoken.Issuer
	Hub         *wsapi.Hub
	Config      *config.Config
	Users       *activeuser.Manager

	// PlaylistUpdate triggers an out-of-band reprocessing run for
	// target, used by POST /api/v1/playlist/update.
	PlaylistUpdate func(target string) error
}

// NewRouter builds the complete HTTP handler tree.
func NewRouter(d *Deps) http.Handler {
	mux := http.NewServeMux()

	x := &xtreamAPI{d: d}
	mux.HandleFunc("/player_api.php", x.ServeHTTP)
	mux.HandleFunc("/panel_api.php", x.ServeHTTP) // common XtreamCodes alias

	s := &streamHandler{d: d}
	mux.HandleFunc("/live/", s.ServeHTTP)
	mux.HandleFunc("/movie/", s.ServeHTTP)
	mux.HandleFunc("/series/", s.ServeHTTP)

	m := &management{d: d}
	mux.Handle("/api/v1/config", d.Tokens.RequireRole("admin", http.HandlerFunc(m.getConfig)))
	mux.Handle("/api/v1/playlist/update", d.Tokens.RequireRole("admin", http.HandlerFunc(m.postPlaylistUpdate)))
	mux.Handle("/api/v1/user/", d.Tokens.RequireRole("admin", http.HandlerFunc(m.userCRUD)))

	if d.Hub != nil {
		mux.Handle("/ws", d.Hub)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthz)

	return emit.BrotliMiddleware(mux)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
