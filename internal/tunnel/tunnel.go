package tunnel

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/real-xinu/xkdb/internal/metrics"
)

const readChunk = 4096

// ConsoleTunnel drives a single interactive session between the user's
// terminal and the backend's serial-over-TCP endpoint, extracting in-band
// debug frames and bridging them to DebugBridge. It lives for the duration
// of the session: Run blocks until the remote stream ends or errors, or
// stdin reaches end of input or errors, then tears down the bridge so the
// caller can restore the terminal.
type ConsoleTunnel struct {
	remote  net.Conn
	bridge  *DebugBridge
	framer  Framer
	writeMu sync.Mutex
}

// New constructs a tunnel over remote, wiring debugListener as the local
// debug-attach target. debugListener is typically bound (but not yet
// Accept-ed) before the caller prints its port to the user.
func New(remote net.Conn, debugListener net.Listener) *ConsoleTunnel {
	t := &ConsoleTunnel{remote: remote}
	t.bridge = NewDebugBridge(debugListener, t.writeRemote)
	return t
}

// DebuggerPort returns the loopback port a debugger should connect to.
func (t *ConsoleTunnel) DebuggerPort() int {
	return t.bridge.Port()
}

// writeRemote serializes writes to the remote stream between the
// console-input path and the DebugBridge attach-loop so a debugger payload
// and a user keystroke never interleave partial writes within one buffer.
func (t *ConsoleTunnel) writeRemote(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.remote.Write(p); err != nil {
		wrap := fmt.Errorf("%w: %v", errRemoteWrite, err)
		metrics.IncError(mapErrToMetric(wrap))
		return err
	}
	metrics.AddTunnelBytesOut(len(p))
	return nil
}

// Run shuttles bytes between stdin, stdout, and the remote stream until the
// remote stream ends or either direction errors, then closes the tunnel.
// stdin and the remote connection are each read on their own goroutine
// (Go's idiomatic stand-in for a single readiness-driven poll loop); the two
// feed a shared completion channel so Run returns as soon as either side is
// done.
func (t *ConsoleTunnel) Run(stdin io.Reader, stdout io.Writer) error {
	done := make(chan error, 2)

	go func() {
		buf := make([]byte, readChunk)
		for {
			n, err := stdin.Read(buf)
			if n > 0 {
				if werr := t.writeRemote(append([]byte(nil), buf[:n]...)); werr != nil {
					done <- werr
					return
				}
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()

	go func() {
		buf := make([]byte, readChunk)
		for {
			n, err := t.remote.Read(buf)
			if n > 0 {
				metrics.AddTunnelBytesIn(n)
				if ferr := t.framer.Feed(buf[:n], stdout, t.bridge.OnFrame); ferr != nil {
					done <- ferr
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					wrap := fmt.Errorf("%w: %v", errRemoteRead, err)
					metrics.IncError(mapErrToMetric(wrap))
				}
				done <- err
				return
			}
		}
	}()

	err := <-done
	closeErr := t.Close()
	if err == io.EOF {
		err = nil
	}
	if err == nil {
		return closeErr
	}
	return fmt.Errorf("tunnel: %w", err)
}

// Close tears down the debug bridge and the remote connection, unblocking
// both of Run's goroutines.
func (t *ConsoleTunnel) Close() error {
	_ = t.bridge.Close()
	return t.remote.Close()
}
