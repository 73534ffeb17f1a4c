package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/iptvgw/gateway/internal/reverseproxy"
)

type streamHandler struct{ d *Deps }

// ServeHTTP parses the Xtream streaming URL scheme spec §6 defines:
// /{live|movie|series}/{user}/{pass}/{id}.{ext}, with live also
// accepting /{user}/{pass}/{id} without a leading cluster segment.
func (s *streamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 {
		http.NotFound(w, r)
		return
	}

	username, password, idPart := parts[len(parts)-3], parts[len(parts)-2], parts[len(parts)-1]
	idPart = strings.TrimSuffix(idPart, extOf(idPart))
	vid, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}

	target := r.URL.Query().Get("target")
	if target == "" {
		target = r.Header.Get("X-Target")
	}
	handler, ok := s.d.Streams[target]
	if !ok {
		http.Error(w, "unknown target", http.StatusNotFound)
		return
	}

	req := reverseproxy.Request{
		Username:  username,
		Password:  password,
		Target:    target,
		VirtualID: uint32(vid),
		Addr:      r.RemoteAddr,
	}

	flusher, _ := w.(http.Flusher)
	flush := func() {}
	if flusher != nil {
		flush = flusher.Flush
	}

	err = handler.ServeStream(r.Context(), w, req, flush)
	if err == nil {
		return
	}

	var redirect *reverseproxy.RedirectError
	if errors.As(err, &redirect) {
		http.Redirect(w, r, redirect.URL, http.StatusFound)
		return
	}

	switch {
	case errors.Is(err, reverseproxy.ErrPermissionDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, reverseproxy.ErrChannelNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, reverseproxy.ErrProviderExhausted):
		http.Error(w, "no provider available", http.StatusServiceUnavailable)
	default:
		// Streaming had already started; nothing useful left to write
		// to the client beyond closing the connection.
	}
}

func extOf(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i:]
	}
	return ""
}
