// Package reverseproxy implements the streaming request flow of
// spec §4.12: admission, redirect-vs-reverse classification, user and
// provider lease acquisition, shared-stream join/create, optional
// throttling, and lease cleanup on disconnect.
package reverseproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/iptvgw/gateway/internal/activeprovider"
	"github.com/iptvgw/gateway/internal/activeuser"
	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/credentials"
	"github.com/iptvgw/gateway/internal/sharedstream"
)

// State is a coarse admitted-stream lifecycle stage (spec §4.12's
// state machine).
type State int

const (
	StateOpening State = iota
	StateStreaming
	StateRetrying
	StateClosing
	StateClosed
)

var (
	ErrPermissionDenied  = errors.New("reverseproxy: permission denied")
	ErrProviderExhausted = errors.New("reverseproxy: no provider alias available")
	ErrChannelNotFound   = errors.New("reverseproxy: channel not found")

	// errIdleTimeout and errForcedRetry are internal signals from relay
	// telling Serve's retry loop to reopen the upstream rather than
	// ending the response.
	errIdleTimeout = errors.New("reverseproxy: no data within grace period")
	errForcedRetry = errors.New("reverseproxy: forced retry interval elapsed")
)

// Lookup resolves a target/virtual-id pair to the channel it names and
// the provider manager handling that input's aliases.
type Lookup interface {
	Channel(ctx context.Context, target string, virtualID uint32) (catalogmodel.Channel, bool, error)
	ProviderFor(inputName string) (*activeprovider.Manager, bool)
}

// Options configures one Handler.
type Options struct {
	Credentials    *credentials.Store
	Users          *activeuser.Manager
	Shared         *sharedstream.Manager
	Lookup         Lookup
	HTTPClient     *http.Client
	ConnectTimeout time.Duration

	// ThrottleKbps, when > 0, caps the per-connection send rate.
	ThrottleKbps int

	GracePeriod         time.Duration
	GracePeriodTimeout  time.Duration
	ForcedRetryInterval time.Duration
}

// Handler serves stream requests for one target.
type Handler struct {
	opts Options
}

// New returns a Handler for the given target, using opts for admission
// and streaming policy.
func New(opts Options) *Handler {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Handler{opts: opts}
}

// Request is one parsed stream request (spec §6's Xtream URL scheme).
type Request struct {
	Username  string
	Password  string
	Target    string
	VirtualID uint32
	Addr      string // client address, used as the lease key
}

// ServeStream runs the full admission→stream flow for req, writing the
// upstream bytes to w. It implements the Opening → Streaming →
// (Retrying ↔ Streaming)* → Closing → Closed state machine of spec
// §4.12: a stalled or recycled upstream is silently reopened (a new
// provider lease and shared-stream join) as long as the client stays
// connected and the total time spent retrying stays under
// GracePeriodTimeout. It returns once the stream ends for good (client
// disconnect, upstream EOF/error exhausting retries, or admission
// failure); the caller is responsible for translating the returned
// error to an HTTP status before any bytes have been written (a
// 401/403/404 per spec §7), and simply closing the connection if the
// failure happens mid-stream.
func (h *Handler) ServeStream(ctx context.Context, w io.Writer, req Request, flush func()) error {
	user, ok := h.opts.Credentials.Lookup(req.Username)
	if !ok || !user.CanStream(time.Now()) {
		return ErrPermissionDenied
	}

	channel, ok, err := h.opts.Lookup.Channel(ctx, req.Target, req.VirtualID)
	if err != nil {
		return fmt.Errorf("reverseproxy: lookup channel: %w", err)
	}
	if !ok {
		return ErrChannelNotFound
	}

	if user.RedirectCluster(string(channel.Cluster())) {
		return &RedirectError{URL: channel.URL}
	}

	perm := h.opts.Users.Add(req.Username, req.Addr, req.Target, "", user.MaxConnections, time.Now())
	if perm == activeuser.Exhausted {
		return ErrPermissionDenied
	}
	defer h.opts.Users.Release(req.Addr)

	provider, ok := h.opts.Lookup.ProviderFor(channel.InputName)
	if !ok {
		return fmt.Errorf("reverseproxy: no provider manager for input %q", channel.InputName)
	}

	state := StateOpening
	retryDeadline := time.Time{}
	for {
		err := h.streamOnce(ctx, w, req, channel, provider, flush, &state)
		if err == nil {
			return nil
		}
		if errors.Is(err, errIdleTimeout) || errors.Is(err, errForcedRetry) {
			if h.opts.GracePeriodTimeout <= 0 {
				return err
			}
			if retryDeadline.IsZero() {
				retryDeadline = time.Now().Add(h.opts.GracePeriodTimeout)
			} else if time.Now().After(retryDeadline) {
				return fmt.Errorf("reverseproxy: retry budget exhausted: %w", err)
			}
			state = StateRetrying
			log.Printf("reverseproxy: %s retrying stream for %s/%d: %v", state, req.Target, req.VirtualID, err)
			continue
		}
		return err
	}
}

// streamOnce acquires one provider lease, joins (or opens) the shared
// stream, and relays bytes until the upstream ends, stalls past the
// idle grace period, or hits its forced-retry interval.
func (h *Handler) streamOnce(ctx context.Context, w io.Writer, req Request, channel catalogmodel.Channel, provider *activeprovider.Manager, flush func(), state *State) error {
	lease, err := provider.Acquire(req.Addr)
	if err != nil {
		return ErrProviderExhausted
	}
	defer provider.Release(req.Addr)

	key := sharedstream.Key{Target: req.Target, VirtualID: req.VirtualID}
	sub, err := h.opts.Shared.Subscribe(ctx, key, h.opener(lease, channel))
	if err != nil {
		provider.ReportResult(ctx, lease.AliasID, err)
		log.Printf("reverseproxy: open upstream for %s failed via alias %s: %v", key, lease.AliasID, err)
		return fmt.Errorf("reverseproxy: open upstream: %w", err)
	}
	defer h.opts.Shared.Unsubscribe(key, sub)

	*state = StateStreaming
	return h.relay(ctx, w, sub, flush)
}

// RedirectError signals the caller should respond with an HTTP 302 to
// URL instead of relaying bytes (spec §4.12 step 2).
type RedirectError struct{ URL string }

func (e *RedirectError) Error() string { return "reverseproxy: redirect to " + e.URL }

func (h *Handler) opener(lease activeprovider.Lease, channel catalogmodel.Channel) sharedstream.Opener {
	return func(ctx context.Context, key sharedstream.Key) (io.ReadCloser, error) {
		connectCtx := ctx
		if h.opts.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			connectCtx, cancel = context.WithTimeout(ctx, h.opts.ConnectTimeout)
			defer cancel()
		}
		httpReq, err := http.NewRequestWithContext(connectCtx, http.MethodGet, lease.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := h.opts.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("reverseproxy: upstream %s: status %d", channel.URL, resp.StatusCode)
		}
		return resp.Body, nil
	}
}

// relay drains sub.Ch into w until a terminal Chunk, ctx cancellation,
// an idle gap past GracePeriod, or ForcedRetryInterval elapsing;
// honors an optional token-bucket throttle.
func (h *Handler) relay(ctx context.Context, w io.Writer, sub *sharedstream.Subscriber, flush func()) error {
	var limiter *rate.Limiter
	if h.opts.ThrottleKbps > 0 {
		bytesPerSec := h.opts.ThrottleKbps * 1000 / 8
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}

	var idleTimer, forcedTimer *time.Timer
	var idle, forced <-chan time.Time
	if h.opts.GracePeriod > 0 {
		idleTimer = time.NewTimer(h.opts.GracePeriod)
		defer idleTimer.Stop()
		idle = idleTimer.C
	}
	if h.opts.ForcedRetryInterval > 0 {
		forcedTimer = time.NewTimer(h.opts.ForcedRetryInterval)
		defer forcedTimer.Stop()
		forced = forcedTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			return errIdleTimeout
		case <-forced:
			return errForcedRetry
		case chunk, ok := <-sub.Ch:
			if !ok {
				return nil
			}
			if chunk.Err != nil {
				if errors.Is(chunk.Err, io.EOF) {
					return nil
				}
				return chunk.Err
			}
			if idleTimer != nil {
				if !idleTimer.Stop() {
					select {
					case <-idleTimer.C:
					default:
					}
				}
				idleTimer.Reset(h.opts.GracePeriod)
			}
			if limiter != nil {
				if err := limiter.WaitN(ctx, len(chunk.Data)); err != nil {
					return err
				}
			}
			if _, err := w.Write(chunk.Data); err != nil {
				return err
			}
			if flush != nil {
				flush()
			}
		}
	}
}
