package action

import (
	"bytes"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/real-xinu/xkdb/internal/session"
)

// fakeSessionServer answers one session request with a CONNECT-style
// response pointing at tcpPort, mimicking the server side of the UDP
// protocol for power-cycle/download session requests.
func fakeSessionServer(t *testing.T, tcpPort int) net.IP {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		buf := make([]byte, 64)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil || n == 0 {
			return
		}
		resp := make([]byte, 76)
		resp[0] = 'C'
		resp = append(resp, []byte(strconv.Itoa(tcpPort)+"\n")...)
		_, _ = conn.WriteToUDP(resp, from)
	}()
	t.Cleanup(func() { conn.Close() })
	local := conn.LocalAddr().(*net.UDPAddr)
	prev := session.BackendPort
	session.BackendPort = local.Port
	t.Cleanup(func() { session.BackendPort = prev })
	return local.IP
}

func TestPowercycle_SendsSentinelAndCloses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	addr := fakeSessionServer(t, ln.Addr().(*net.TCPAddr).Port)
	if err := Powercycle(addr, "xinu01", session.Options{Timeout: 500 * time.Millisecond}); err != nil {
		t.Fatalf("Powercycle: %v", err)
	}

	select {
	case data := <-received:
		if !bytes.Equal(data, []byte("boop")) {
			t.Fatalf("received %q, want \"boop\"", data)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for powercycle payload")
	}
}

func TestUploadImage_StreamsInOrder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1000) // > one 4096 chunk
	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	addr := fakeSessionServer(t, ln.Addr().(*net.TCPAddr).Port)
	src := bytes.NewReader(payload)
	if err := UploadImage(addr, "xinu01", src, session.Options{Timeout: 500 * time.Millisecond}); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}

	select {
	case data := <-received:
		if !bytes.Equal(data, payload) {
			t.Fatalf("received %d bytes, want %d bytes matching payload", len(data), len(payload))
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for upload payload")
	}
}
