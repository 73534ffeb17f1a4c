package hdhomerun

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/iptvgw/gateway/internal/config"
	"github.com/iptvgw/gateway/internal/emit"
)

// udnNamespace scopes the deterministic UDNs the gateway derives for
// each configured device from its device id, so the same device id
// always advertises the same UPnP UDN across restarts.
var udnNamespace = uuid.MustParse("b2f015a0-6a9a-4b59-9f1a-6c3f2d9c9a10")

// Server runs the SSDP responder and one HTTP discovery endpoint per
// configured device.
type Server struct {
	Lookup    Lookup
	MaxLineup int

	endpoints []*Endpoint
	listeners []net.Listener
}

// NewServer builds a Server from cfg.HDHomeRun. advertiseHost is the
// host (no port) clients should use to reach this gateway, e.g. the
// LAN IP of the machine running it. streamURLFor is called once per
// device with that device's configured Config.Target, since each
// device's lineup is scoped to a single target's live cluster.
func NewServer(devices []config.HDHomeRunDevice, advertiseHost string, lookup Lookup, streamURLFor func(target string) emit.StreamURLFunc, maxLineup int) *Server {
	s := &Server{Lookup: lookup, MaxLineup: maxLineup}
	for _, d := range devices {
		deviceID := d.DeviceID
		if deviceID == "" {
			deviceID = DeviceIDFromBase(d.Name)
		} else if !ValidDeviceID(deviceID) {
			log.Printf("hdhomerun: device %q has invalid device_id %q; deriving a valid one", d.Name, deviceID)
			deviceID = DeviceIDFromBase(deviceID)
		}
		host := fmt.Sprintf("%s:%d", advertiseHost, d.Port)
		dev := Device{
			Name:       d.Name,
			UDN:        uuid.NewSHA1(udnNamespace, []byte(deviceID)).String(),
			Host:       host,
			DeviceID:   deviceID,
			TunerCount: d.TunerCount,
		}
		s.endpoints = append(s.endpoints, &Endpoint{
			Device:      dev,
			Config:      d,
			MaxChannels: maxLineup,
			Lookup:      lookup,
			StreamURL:   streamURLFor(d.Target),
		})
	}
	return s
}

// Devices returns the SSDP-advertised device set, for wiring into an
// SSDPResponder.
func (s *Server) Devices() []Device {
	out := make([]Device, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, e.Device)
	}
	return out
}

// Run starts one HTTP listener per device and the shared SSDP
// responder, blocking until ctx is canceled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	if len(s.endpoints) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	errCh := make(chan error, len(s.endpoints)+1)
	var servers []*http.Server

	for _, e := range s.endpoints {
		mux := http.NewServeMux()
		e.Mount(mux)
		srv := &http.Server{Addr: fmt.Sprintf(":%d", e.Config.Port), Handler: mux}
		servers = append(servers, srv)
		go func(e *Endpoint, srv *http.Server) {
			log.Printf("hdhomerun: device %q serving on %s (device_id=%s)", e.Config.Name, srv.Addr, e.Config.DeviceID)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("hdhomerun: device %q http server: %w", e.Config.Name, err)
			}
		}(e, srv)
	}

	responder := &SSDPResponder{Devices: s.Devices()}
	go func() {
		errCh <- responder.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		for _, srv := range servers {
			srv.Close()
		}
		return ctx.Err()
	case err := <-errCh:
		for _, srv := range servers {
			srv.Close()
		}
		return err
	}
}
