package probe

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbe_mp4ContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	typ, err := Probe(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if typ != StreamDirectMP4 {
		t.Fatalf("Probe = %q, want %q", typ, StreamDirectMP4)
	}
}

func TestProbe_matroskaContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/x-matroska")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	typ, err := Probe(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if typ != StreamDirectFile {
		t.Fatalf("Probe = %q, want %q", typ, StreamDirectFile)
	}
}

func TestProbe_ebmlBodySniff(t *testing.T) {
	ebml := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00, 0x00, 0x00, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(ebml)
	}))
	defer srv.Close()

	typ, err := Probe(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if typ != StreamDirectFile {
		t.Fatalf("Probe = %q, want %q (EBML body sniff)", typ, StreamDirectFile)
	}
}

func TestProbe_hlsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	typ, err := Probe(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if typ != StreamHLS {
		t.Fatalf("Probe = %q, want %q", typ, StreamHLS)
	}
}

func TestProbe_rejectsNonHTTPScheme(t *testing.T) {
	if _, err := Probe("file:///etc/passwd", nil); err == nil {
		t.Fatal("expected error for file:// scheme")
	}
}
