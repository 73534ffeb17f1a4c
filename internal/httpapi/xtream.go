package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/credentials"
	"github.com/iptvgw/gateway/internal/emit"
)

// allowedOutputFormats is the fixed set XtreamCodes panels advertise in
// user_info: "ts" and "m3u8", listed regardless of per-request cluster
// or configuration.
var allowedOutputFormats = []string{"ts", "m3u8"}

type xtreamAPI struct{ d *Deps }

// ServeHTTP dispatches player_api.php's `action` query parameter to
// the matching Xtream-compatible handler (spec §6).
func (x *xtreamAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, target, ok := x.authenticate(r)
	if !ok {
		writeJSON(w, map[string]any{"user_info": map[string]any{"auth": 0}})
		return
	}

	action := r.URL.Query().Get("action")
	ctx := r.Context()

	switch action {
	case "":
		writeJSON(w, x.userInfo(user))
	case "get_live_categories", "get_vod_categories", "get_series_categories":
		cluster := clusterForCategoryAction(action)
		cats, err := x.d.Catalog.LoadCategories(ctx, target)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, emit.Categories(filterCategoriesByCluster(cats, cluster)))
	case "get_live_streams":
		channels, err := x.d.Catalog.Iter(ctx, target, catalogmodel.ClusterLive)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, emit.LiveStreams(channels))
	case "get_vod_streams":
		channels, err := x.d.Catalog.Iter(ctx, target, catalogmodel.ClusterVideo)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, emit.VODStreams(channels))
	case "get_series":
		channels, err := x.d.Catalog.Iter(ctx, target, catalogmodel.ClusterSeries)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, emit.Series(channels))
	case "get_vod_info":
		channel, ok := x.channelByID(ctx, target, catalogmodel.ClusterVideo, r)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, emit.VODInfo(channel))
	case "get_series_info":
		channel, ok := x.channelByID(ctx, target, catalogmodel.ClusterSeries, r)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, emit.VODInfo(channel))
	case "get_epg":
		// EPG metadata ingestion/serving is out of scope (spec
		// Non-goals); the action still responds with an empty but
		// well-formed payload so XtreamCodes clients don't error out.
		writeJSON(w, map[string]any{"epg_listings": []any{}})
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

func (x *xtreamAPI) channelByID(ctx context.Context, target string, cluster catalogmodel.Cluster, r *http.Request) (catalogmodel.Channel, bool) {
	idStr := r.URL.Query().Get(map[catalogmodel.Cluster]string{
		catalogmodel.ClusterVideo:  "vod_id",
		catalogmodel.ClusterSeries: "series_id",
	}[cluster])
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return catalogmodel.Channel{}, false
	}
	channel, ok, err := x.d.Catalog.GetByVirtualID(ctx, target, cluster, uint32(id))
	if err != nil || !ok {
		return catalogmodel.Channel{}, false
	}
	return channel, true
}

func (x *xtreamAPI) authenticate(r *http.Request) (*credentials.User, string, bool) {
	q := r.URL.Query()
	username, password := q.Get("username"), q.Get("password")
	target := q.Get("target")
	if target == "" {
		target = r.Header.Get("X-Target")
	}
	user, ok := x.d.Credentials.Lookup(username)
	if !ok || user.Password != password {
		return nil, "", false
	}
	return user, target, true
}

// userInfo builds the full XtreamCodes login/user_info payload (spec
// §6: "matches the widely-deployed XtreamCodes shape bit-exactly"),
// grounded on original_source's XtreamAuthorizationResponse: a
// user_info block carrying every field a real XtreamCodes panel
// returns, plus the server_info block panels read to build stream
// URLs themselves.
func (x *xtreamAPI) userInfo(user *credentials.User) map[string]any {
	now := time.Now()

	expDate := now.Add(365 * 24 * time.Hour).Unix()
	if user.ExpDate != nil {
		expDate = *user.ExpDate
	}
	createdAt := now.Add(-365 * 24 * time.Hour).Unix()
	if user.CreatedAt != nil {
		createdAt = *user.CreatedAt
	}
	isTrial := "0"
	if user.Status == credentials.StatusTrial {
		isTrial = "1"
	}
	activeCons := 0
	if x.d.Users != nil {
		activeCons = x.d.Users.Count(user.Username)
	}

	protocol := x.d.Config.API.Protocol
	if protocol == "" {
		protocol = "http"
	}
	timezone := x.d.Config.API.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	port := x.d.Config.API.Port
	httpsPort, httpPort := "443", "80"
	if protocol == "https" {
		httpsPort = strconv.Itoa(port)
	} else {
		httpPort = strconv.Itoa(port)
	}

	return map[string]any{
		"user_info": map[string]any{
			"username":               user.Username,
			"password":               user.Password,
			"message":                x.d.Config.API.Message,
			"auth":                   1,
			"status":                 string(user.Status),
			"exp_date":               strconv.FormatInt(expDate, 10),
			"is_trial":               isTrial,
			"active_cons":            strconv.Itoa(activeCons),
			"created_at":             strconv.FormatInt(createdAt, 10),
			"max_connections":        strconv.Itoa(user.MaxConnections),
			"allowed_output_formats": allowedOutputFormats,
		},
		"server_info": map[string]any{
			"url":             x.d.Config.API.Host,
			"port":            httpPort,
			"https_port":      httpsPort,
			"server_protocol": protocol,
			"rtmp_port":       "",
			"timezone":        timezone,
			"timestamp_now":   now.Unix(),
			"time_now":        now.Format("2006-01-02 15:04:05"),
			"process":         true,
		},
	}
}

func clusterForCategoryAction(action string) catalogmodel.Cluster {
	switch action {
	case "get_vod_categories":
		return catalogmodel.ClusterVideo
	case "get_series_categories":
		return catalogmodel.ClusterSeries
	default:
		return catalogmodel.ClusterLive
	}
}

func filterCategoriesByCluster(cats []catalogmodel.Category, cluster catalogmodel.Cluster) []catalogmodel.Category {
	out := make([]catalogmodel.Category, 0, len(cats))
	for _, c := range cats {
		if c.Cluster == cluster {
			out = append(out, c)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
