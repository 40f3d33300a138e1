// Package session implements the CONNECT/POWERCYCLE/DOWNLOAD session
// request: a short-lived UDP round trip that allocates an ephemeral TCP
// port for a named service on a specific backend server.
package session

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/real-xinu/xkdb/internal/metrics"
	"github.com/real-xinu/xkdb/internal/wire"
)

// BackendPort is the fixed UDP port Xinu backend servers listen on. It is a
// var, not a const, so tests can point Request at a loopback fake server
// without needing CAP_NET_BIND or a privileged listener.
var BackendPort = 2025

const defaultTimeout = 2 * time.Second
const recvBufSize = 125004
const defaultUser = "xkdb"

// ErrTimeout is returned when no response arrives within the bound.
var ErrTimeout = errors.New("session: timed out waiting for response")

// ErrBadResponse wraps a protocol decode failure on the session response.
var ErrBadResponse = errors.New("session: bad response")

// Ticket is the (IP, TCP port) pair returned by the server for one service.
type Ticket struct {
	Remote net.IP
	Port   uint16
}

// Options configures a session request.
type Options struct {
	// Timeout bounds the single blocking receive. Defaults to 2s.
	Timeout time.Duration
}

// Request sends a CONNECT-kind request for (server, class) to serverAddr
// and returns the allocated TCP session ticket.
func Request(serverAddr net.IP, server, class string, opts Options) (Ticket, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	req, err := wire.EncodeRequest(wire.KindConnect, defaultUser, server, class)
	if err != nil {
		return Ticket{}, fmt.Errorf("session: encode request: %w", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return Ticket{}, fmt.Errorf("session: listen: %w", err)
	}
	defer conn.Close()

	metrics.IncSessionRequest(class)
	dst := &net.UDPAddr{IP: serverAddr, Port: BackendPort}
	if _, err := conn.WriteToUDP(req, dst); err != nil {
		wrap := fmt.Errorf("%w: %v", errSend, err)
		metrics.IncError(mapErrToMetric(wrap))
		return Ticket{}, fmt.Errorf("session: send: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Ticket{}, fmt.Errorf("session: set deadline: %w", err)
	}
	buf := make([]byte, recvBufSize)
	n, from, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			metrics.IncSessionTimeout()
			return Ticket{}, ErrTimeout
		}
		wrap := fmt.Errorf("%w: %v", errRecv, err)
		metrics.IncError(mapErrToMetric(wrap))
		return Ticket{}, fmt.Errorf("session: recv: %w", err)
	}

	port, err := wire.DecodeSessionResponse(buf[:n])
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return Ticket{Remote: from.IP, Port: port}, nil
}
