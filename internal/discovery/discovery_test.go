package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/real-xinu/xkdb/internal/wire"
)

// fakeServer answers LIST requests on a loopback UDP socket, simulating a
// backend server for discovery tests without needing broadcast capability.
func fakeServer(t *testing.T, name string, records []wire.BackendRecord) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		buf := make([]byte, 128)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n < 1 || buf[0] != 'C' {
			return
		}
		resp := wire.EncodeListResponse(name, records)
		_, _ = conn.WriteToUDP(resp, from)
	}()
	t.Cleanup(func() { conn.Close() })
	local := conn.LocalAddr().(*net.UDPAddr)
	prev := BackendPort
	BackendPort = local.Port
	t.Cleanup(func() { BackendPort = prev })
	return local
}

func TestDiscover_SingleResponder(t *testing.T) {
	addr := fakeServer(t, "server1", []wire.BackendRecord{{Name: "xinu01", Type: "quark"}})

	f, err := Discover([]net.IP{addr.IP}, Options{Class: "quark", Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if f.Len() != 1 {
		t.Fatalf("fleet len = %d, want 1", f.Len())
	}
	if f.Servers()[0].Name != "server1" {
		t.Fatalf("server name = %q, want server1", f.Servers()[0].Name)
	}
}

func TestDiscover_SkipsNonResponders(t *testing.T) {
	addr := fakeServer(t, "server1", nil)
	deadIP := net.IPv4(127, 0, 0, 2) // loopback address with nothing listening on BackendPort

	f, err := Discover([]net.IP{deadIP, addr.IP}, Options{Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if f.Len() != 1 {
		t.Fatalf("fleet len = %d, want 1 (dead address must be skipped, not fatal)", f.Len())
	}
}
