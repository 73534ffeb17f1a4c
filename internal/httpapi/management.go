package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

type management struct{ d *Deps }

// getConfig serves the current effective configuration for admin
// tooling (spec §6: GET /api/v1/config).
func (m *management) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, m.d.Config)
}

type playlistUpdateRequest struct {
	Targets []string `json:"targets"`
}

// postPlaylistUpdate reruns the processing pipeline for the given
// targets (spec §6: POST /api/v1/playlist/update).
func (m *management) postPlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req playlistUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if m.d.PlaylistUpdate == nil {
		http.Error(w, "playlist update not configured", http.StatusNotImplemented)
		return
	}
	for _, target := range req.Targets {
		if err := m.d.PlaylistUpdate(target); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

// userCRUD serves GET /api/v1/user/{name}. With no path segment it
// returns the whole credential snapshot; otherwise the segment is looked
// up as a username and that user's credential is returned (404 if none).
// No filtering by target is applied. Create/update/delete are not
// exposed for the file-backed credential store (api-proxy.yml is
// operator-managed); only GET is accepted.
func (m *management) userCRUD(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	target := strings.TrimPrefix(r.URL.Path, "/api/v1/user/")
	if target == "" {
		writeJSON(w, m.d.Credentials.Snapshot())
		return
	}
	user, ok := m.d.Credentials.Lookup(target)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, user)
}
