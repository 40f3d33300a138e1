package tunnel

import (
	"errors"

	"github.com/real-xinu/xkdb/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	errRemoteRead  = errors.New("tunnel_remote_read")
	errRemoteWrite = errors.New("tunnel_remote_write")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, errRemoteRead):
		return metrics.ErrTunnelRead
	case errors.Is(err, errRemoteWrite):
		return metrics.ErrTunnelWrite
	default:
		return "other"
	}
}
