package emit

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// BrotliMiddleware wraps next so that responses are brotli-compressed
// whenever the client advertises "br" in Accept-Encoding (spec §6:
// "optional brotli-encoded JSON/M3U responses").
func BrotliMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			next.ServeHTTP(w, r)
			return
		}
		bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
		defer bw.Close()
		rw := &brotliResponseWriter{ResponseWriter: w, w: bw}
		next.ServeHTTP(rw, r)
	})
}

type brotliResponseWriter struct {
	http.ResponseWriter
	w           io.Writer
	wroteHeader bool
}

func (b *brotliResponseWriter) WriteHeader(status int) {
	if !b.wroteHeader {
		b.Header().Set("Content-Encoding", "br")
		b.Header().Del("Content-Length")
		b.wroteHeader = true
	}
	b.ResponseWriter.WriteHeader(status)
}

func (b *brotliResponseWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.w.Write(p)
}
