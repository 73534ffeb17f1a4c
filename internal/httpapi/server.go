package httpapi

import (
	"context"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewServer wraps handler in an h2c-capable *http.Server bound to
// addr, so HTTP/2 clients (including prior-knowledge h2c, which some
// Xtream/HDHomeRun client libraries use) are served without TLS.
func NewServer(addr string, handler http.Handler) *http.Server {
	h2s := &http2.Server{}
	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(handler, h2s),
	}
}

// Run starts srv and blocks until ctx is canceled, at which point it
// shuts srv down gracefully.
func Run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
