package serialport

import (
	"errors"

	"github.com/real-xinu/xkdb/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var errMirrorWrite = errors.New("mirror_write")

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, errMirrorWrite):
		return metrics.ErrMirrorWrite
	default:
		return "other"
	}
}
