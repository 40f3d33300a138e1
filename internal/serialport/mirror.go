package serialport

import (
	"context"
	"fmt"

	"github.com/real-xinu/xkdb/internal/logging"
	"github.com/real-xinu/xkdb/internal/metrics"
	"github.com/real-xinu/xkdb/internal/transport"
)

const mirrorBuf = 64

// Mirror funnels console bytes to a local serial port through one goroutine
// so a slow or disconnected mirror device never backs up the tunnel.
type Mirror struct {
	tx *transport.AsyncWriter
}

// NewMirror wraps port behind an AsyncWriter. Dropped writes (buffer full)
// are counted but otherwise ignored: the mirror is best-effort and must
// never slow the real session.
func NewMirror(ctx context.Context, port Port) *Mirror {
	send := func(p []byte) error {
		_, err := port.Write(p)
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) {
			wrap := fmt.Errorf("%w: %v", errMirrorWrite, err)
			metrics.IncError(mapErrToMetric(wrap))
			logging.L().Warn("mirror_write_error", "error", err)
		},
		OnDrop: func() error {
			metrics.AddMirrorDropped(1)
			return nil
		},
	}
	return &Mirror{tx: transport.NewAsyncWriter(ctx, mirrorBuf, send, hooks)}
}

// Write queues p for the mirror device; it never blocks on a slow device.
func (m *Mirror) Write(p []byte) {
	_ = m.tx.Send(p)
}

// Close stops the mirror writer.
func (m *Mirror) Close() {
	m.tx.Close()
}
