package hdhomerun

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	ssdpPort  = 1900
	ssdpGroup = "239.255.255.250"
)

var supportedSearchTargets = map[string]bool{
	"urn:schemas-upnp-org:device:mediaserver:1": true,
	"upnp:rootdevice":                           true,
	"ssdp:all":                                  true,
}

// Device is one emulated tuner device advertised over SSDP and the
// HTTP discovery endpoints.
type Device struct {
	Name     string
	UDN      string // "uuid:..." value used in USN/device.xml
	Host     string // advertised host:port base, e.g. "192.168.1.10:5004"
	DeviceID string
	TunerCount int
}

func (d Device) ssdpResponse() string {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	b.WriteString("CACHE-CONTROL: max-age=1800\r\n")
	fmt.Fprintf(&b, "LOCATION: http://%s/device.xml\r\n", d.Host)
	b.WriteString("SERVER: iptvgw/1.0 UPnP/1.1 iptvgw-HDHR/1.0\r\n")
	b.WriteString("ST: urn:schemas-upnp-org:device:MediaServer:1\r\n")
	fmt.Fprintf(&b, "USN: uuid:%s\r\n\r\n", d.UDN)
	return b.String()
}

// SSDPResponder answers M-SEARCH discovery requests for a fixed set of
// devices (spec §6: "SSDP M-SEARCH responder on UDP 1900 ... after a
// randomized 0-min(MX,2)s delay").
type SSDPResponder struct {
	Devices []Device
}

// Run listens for M-SEARCH requests until ctx is canceled. Grounded on
// the original implementation's ssdp_task_loop: join the SSDP
// multicast group, filter to M-SEARCH/ssdp:discover requests with a
// supported ST, then respond (after the randomized delay) once per
// enabled device.
func (r *SSDPResponder) Run(ctx context.Context) error {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: ssdpPort}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("hdhomerun: ssdp listen: %w", err)
	}
	defer conn.Close()

	if iface, err := multicastInterface(); err == nil {
		if pc := ipv4.NewPacketConn(conn); pc != nil {
			group := &net.UDPAddr{IP: net.ParseIP(ssdpGroup)}
			if err := pc.JoinGroup(iface, group); err != nil {
				log.Printf("hdhomerun: ssdp multicast join failed, falling back to unicast-only replies: %v", err)
			}
		}
	}

	log.Printf("hdhomerun: ssdp discovery listening on udp/%d", ssdpPort)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Printf("hdhomerun: ssdp read error: %v", err)
			continue
		}
		r.handle(ctx, conn, remote, buf[:n])
	}
}

func (r *SSDPResponder) handle(ctx context.Context, conn *net.UDPConn, remote *net.UDPAddr, data []byte) {
	req := string(data)
	if !strings.HasPrefix(req, "M-SEARCH") {
		return
	}
	lower := strings.ToLower(req)
	if !strings.Contains(lower, `man: "ssdp:discover"`) {
		return
	}
	st := "ssdp:all"
	mx := 1
	for _, line := range strings.Split(lower, "\r\n") {
		if v, ok := strings.CutPrefix(line, "st:"); ok {
			st = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "mx:"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				mx = n
			}
		}
	}
	if !supportedSearchTargets[st] {
		return
	}

	delayMax := mx
	if delayMax > 2 {
		delayMax = 2
	}
	if delayMax > 0 {
		delay := time.Duration(rand.Intn(delayMax*1000+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	for _, d := range r.Devices {
		if _, err := conn.WriteToUDP([]byte(d.ssdpResponse()), remote); err != nil {
			log.Printf("hdhomerun: ssdp write to %s failed: %v", remote, err)
		}
	}
}

// multicastInterface picks the first up, multicast-capable interface
// to join the SSDP group on. Responders that only ever answer unicast
// M-SEARCH (the common case behind NAT/firewalled LANs) still function
// if this fails and the join is skipped.
func multicastInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		f := ifaces[i].Flags
		if f&net.FlagUp != 0 && f&net.FlagMulticast != 0 && f&net.FlagLoopback == 0 {
			return &ifaces[i], nil
		}
	}
	return nil, fmt.Errorf("hdhomerun: no multicast-capable interface found")
}
