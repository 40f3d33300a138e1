package session

import (
	"errors"

	"github.com/real-xinu/xkdb/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	errSend = errors.New("session_send")
	errRecv = errors.New("session_recv")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, errSend):
		return metrics.ErrSessionSend
	case errors.Is(err, errRecv):
		return metrics.ErrSessionRecv
	default:
		return "other"
	}
}
