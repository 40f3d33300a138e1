package tunnel

import (
	"fmt"
	"net"
	"sync"

	"github.com/real-xinu/xkdb/internal/logging"
	"github.com/real-xinu/xkdb/internal/metrics"
)

type attachState int

const (
	stateIdle attachState = iota
	stateListening
	stateAttached
)

// DebugBridge exposes the in-band debug channel as a normal TCP attach
// target for a symbolic debugger. It is IDLE until the first debug frame
// arrives from the remote, at which point it arms a background accept loop
// (LISTENING). Frames received before a debugger attaches accumulate in a
// FIFO (pendingOut); once a debugger attaches (ATTACHED) its bytes are
// forwarded into the remote stream via remoteWrite, unframed. Only one
// attach is honored per session; later connections are closed immediately.
type DebugBridge struct {
	mu          sync.Mutex
	state       attachState
	listener    net.Listener
	attached    net.Conn
	pendingOut  [][]byte
	remoteWrite func([]byte) error
}

// NewDebugBridge wraps an already-bound loopback listener. The listener is
// bound eagerly so its port can be reported before any debug frame arrives;
// Accept is only called once the bridge transitions out of IDLE.
func NewDebugBridge(listener net.Listener, remoteWrite func([]byte) error) *DebugBridge {
	return &DebugBridge{listener: listener, remoteWrite: remoteWrite}
}

// Port returns the loopback TCP port a debugger should connect to.
func (b *DebugBridge) Port() int {
	return b.listener.Addr().(*net.TCPAddr).Port
}

// OnFrame delivers one debug frame extracted from the remote stream.
func (b *DebugBridge) OnFrame(frame []byte) {
	b.mu.Lock()
	switch b.state {
	case stateIdle:
		b.state = stateListening
		b.pendingOut = append(b.pendingOut, frame)
		b.mu.Unlock()
		go b.acceptLoop()
		return
	case stateListening:
		b.pendingOut = append(b.pendingOut, frame)
		b.mu.Unlock()
		return
	default: // stateAttached
		conn := b.attached
		b.mu.Unlock()
		if conn != nil {
			if _, err := conn.Write(frame); err != nil {
				logging.L().Warn("debug_bridge_write_failed", "error", err)
			}
		}
	}
}

// Close shuts down the listener and any attached debugger connection,
// unblocking the accept loop and the attach forward loop.
func (b *DebugBridge) Close() error {
	b.mu.Lock()
	attached := b.attached
	b.mu.Unlock()
	if attached != nil {
		_ = attached.Close()
	}
	return b.listener.Close()
}

// acceptLoop keeps calling Accept for the life of the session so that any
// debugger connecting after the first is actually rejected/closed rather
// than left hanging in the OS backlog: only the first accepted connection
// is attached and forwarded (in its own goroutine); every later one is
// closed immediately and the loop goes back to Accept.
func (b *DebugBridge) acceptLoop() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		if b.state == stateAttached {
			b.mu.Unlock()
			_ = conn.Close()
			continue
		}
		b.attached = conn
		b.state = stateAttached
		pending := b.pendingOut
		b.pendingOut = nil
		b.mu.Unlock()

		go func() {
			for _, frame := range pending {
				if _, err := conn.Write(frame); err != nil {
					logging.L().Warn("debug_bridge_flush_failed", "error", err)
					return
				}
			}
			b.forwardToRemote(conn)
		}()
	}
}

func (b *DebugBridge) forwardToRemote(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			metrics.IncTunnelDebugFrame()
			if werr := b.remoteWrite(append([]byte(nil), buf[:n]...)); werr != nil {
				wrap := fmt.Errorf("%w: %v", errRemoteWrite, werr)
				metrics.IncError(mapErrToMetric(wrap))
				return
			}
		}
		if err != nil {
			return
		}
	}
}
