// Package action implements the two session-backed service actions layered
// on top of a session ticket: power-cycling a backend and streaming an
// image to it for flashing.
package action

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/real-xinu/xkdb/internal/session"
)

const chunkSize = 4096

// powercycleLiteral is the sentinel payload the remote interprets as a
// power-cycle trigger; its arrival followed by the connection closing is
// the entire protocol.
var powercycleLiteral = []byte("boop")

// dialTCP is a seam for tests to substitute a fake dialer.
var dialTCP = func(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, 5*time.Second)
}

// halfCloser is satisfied by *net.TCPConn; callers not running against a
// real TCP socket (e.g. test doubles) may omit it and rely on Close.
type halfCloser interface {
	CloseWrite() error
}

// Powercycle requests a POWERCYCLE session for backend, dials the returned
// endpoint, writes the sentinel, half-closes the write side, then closes.
func Powercycle(serverAddr net.IP, backendName string, opts session.Options) error {
	ticket, err := session.Request(serverAddr, backendName+"-pc", "POWERCYCLE", opts)
	if err != nil {
		return fmt.Errorf("powercycle: %w", err)
	}
	conn, err := dialTCP(fmt.Sprintf("%s:%d", ticket.Remote, ticket.Port))
	if err != nil {
		return fmt.Errorf("powercycle: dial: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write(powercycleLiteral); err != nil {
		return fmt.Errorf("powercycle: write: %w", err)
	}
	if hc, ok := conn.(halfCloser); ok {
		if err := hc.CloseWrite(); err != nil {
			return fmt.Errorf("powercycle: half-close: %w", err)
		}
	}
	return nil
}

// UploadImage requests a DOWNLOAD session for backend, dials the returned
// endpoint, and streams src to it in fixed 4096-byte chunks (the final
// chunk may be shorter), preserving byte order. Short writes within a
// chunk are retried until the chunk drains or the peer errors.
func UploadImage(serverAddr net.IP, backendName string, src io.Reader, opts session.Options) error {
	ticket, err := session.Request(serverAddr, backendName+"-dl", "DOWNLOAD", opts)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	conn, err := dialTCP(fmt.Sprintf("%s:%d", ticket.Remote, ticket.Port))
	if err != nil {
		return fmt.Errorf("upload: dial: %w", err)
	}
	defer conn.Close()

	buf := make([]byte, chunkSize)
	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if werr := writeFull(conn, buf[:n]); werr != nil {
				return fmt.Errorf("upload: write: %w", werr)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("upload: read source: %w", rerr)
		}
	}
	if hc, ok := conn.(halfCloser); ok {
		if err := hc.CloseWrite(); err != nil {
			return fmt.Errorf("upload: half-close: %w", err)
		}
	}
	return nil
}

// writeFull retries short writes until buf is fully drained or the peer errors.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
