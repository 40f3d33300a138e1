// Package discovery implements the broadcast UDP discovery client: it sends
// the LIST request to every host-local IPv4 broadcast address on the fixed
// backend port and collects at most one response per responding address.
package discovery

import (
	"fmt"
	"net"
	"time"

	"github.com/real-xinu/xkdb/internal/fleet"
	"github.com/real-xinu/xkdb/internal/logging"
	"github.com/real-xinu/xkdb/internal/metrics"
	"github.com/real-xinu/xkdb/internal/wire"
)

// BackendPort is the fixed UDP port Xinu backend servers listen on. It is a
// var, not a const, so tests can point Discover at loopback fake servers
// without needing a privileged listener.
var BackendPort = 2025

// recvBufSize matches the source's worst-case LIST response budget.
const recvBufSize = 125004

// minSockRecvBuf is the minimum SO_RCVBUF the discovery socket requests.
const minSockRecvBuf = 40000

const defaultUser = "xkdb"

// Options configures a discovery round.
type Options struct {
	// Class is the backend class filter (e.g. "quark").
	Class string
	// Timeout bounds each per-address receive. Defaults to 2s.
	Timeout time.Duration
	// ExtraAddrs supplements the broadcast addresses with specific unicast
	// addresses (e.g. surfaced by the optional mDNS browse).
	ExtraAddrs []net.IP
}

const defaultTimeout = 2 * time.Second

// Discover probes every address in broadcastAddrs (plus any opts.ExtraAddrs)
// with a LIST request and returns the fleet of servers that answered within
// the timeout. A missing response for one address is not an error: it is
// skipped and the round continues with the remaining addresses.
func Discover(broadcastAddrs []net.IP, opts Options) (*fleet.Fleet, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}
	defer conn.Close()
	setBroadcastAndBuffer(conn)

	req, err := wire.EncodeRequest(wire.KindList, defaultUser, "", opts.Class)
	if err != nil {
		return nil, fmt.Errorf("discovery: encode request: %w", err)
	}

	targets := append([]net.IP{}, broadcastAddrs...)
	targets = append(targets, opts.ExtraAddrs...)

	out := fleet.NewFleet()
	buf := make([]byte, recvBufSize)
	for _, addr := range targets {
		metrics.IncDiscoveryProbed()
		dst := &net.UDPAddr{IP: addr, Port: BackendPort}
		if _, err := conn.WriteToUDP(req, dst); err != nil {
			logging.L().Warn("discovery_send_failed", "addr", addr.String(), "error", err)
			continue
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("discovery: set deadline: %w", err)
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				metrics.IncDiscoveryTimeout()
				continue // no response from this address within the bound; skip it
			}
			logging.L().Warn("discovery_recv_error", "addr", addr.String(), "error", err)
			continue
		}
		name, records, err := wire.DecodeListResponse(buf[:n])
		if err != nil {
			metrics.IncDiscoveryDecodeError()
			logging.L().Warn("discovery_decode_error", "addr", from.IP.String(), "error", err)
			continue
		}
		metrics.IncDiscoveryAnswered()
		out.Add(fleet.ServerRecord{Name: name, Addr: from.IP, Backends: records})
	}
	return out, nil
}

func setBroadcastAndBuffer(conn *net.UDPConn) {
	if raw, err := conn.SyscallConn(); err == nil {
		_ = raw.Control(func(fd uintptr) { setSocketOptions(fd) })
	}
	_ = conn.SetReadBuffer(minSockRecvBuf)
}
