package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iptvgw/gateway/internal/credentials"
)

func newTestCredentials(t *testing.T) *credentials.Store {
	t.Helper()
	s := credentials.NewStore()
	return s
}

func TestHealthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	healthz(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", w.Code)
	}
}

func TestXtreamAPI_UnauthenticatedReturnsAuthZero(t *testing.T) {
	d := &Deps{Credentials: newTestCredentials(t)}
	x := &xtreamAPI{d: d}

	req := httptest.NewRequest(http.MethodGet, "/player_api.php?username=nobody&password=x", nil)
	w := httptest.NewRecorder()
	x.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct == "" {
		t.Fatal("expected a Content-Type header")
	}
	var body struct {
		UserInfo struct {
			Auth *int `json:"auth"`
		} `json:"user_info"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.UserInfo.Auth == nil || *body.UserInfo.Auth != 0 {
		t.Fatalf("user_info.auth = %v, want 0 in %s", body.UserInfo.Auth, w.Body.String())
	}
}

func TestExtOf(t *testing.T) {
	tests := map[string]string{
		"123.ts":  ".ts",
		"123.m3u8": ".m3u8",
		"123":     "",
	}
	for in, want := range tests {
		if got := extOf(in); got != want {
			t.Errorf("extOf(%q) = %q, want %q", in, got, want)
		}
	}
}
