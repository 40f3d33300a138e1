// Package metrics exposes the client's Prometheus counters and the
// optional /metrics and /ready HTTP endpoints, mirroring the ambient
// observability surface the teacher gateway carries for its own counters.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/real-xinu/xkdb/internal/logging"
)

// Prometheus counters
var (
	DiscoveryProbed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_discovery_addresses_probed_total",
		Help: "Total addresses sent a LIST request during discovery.",
	})
	DiscoveryAnswered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_discovery_addresses_answered_total",
		Help: "Total addresses that returned a decodable LIST response.",
	})
	DiscoveryDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_discovery_decode_errors_total",
		Help: "Total LIST responses that failed to decode.",
	})
	DiscoveryTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_discovery_timeouts_total",
		Help: "Total per-address discovery receives that timed out.",
	})
	SessionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xkdb_session_requests_total",
		Help: "Total session requests (CONNECT/POWERCYCLE/DOWNLOAD) by class.",
	}, []string{"class"})
	SessionTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_session_timeouts_total",
		Help: "Total session requests that timed out waiting for a response.",
	})
	TunnelBytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_tunnel_bytes_in_total",
		Help: "Total bytes read from the remote console stream.",
	})
	TunnelBytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_tunnel_bytes_out_total",
		Help: "Total bytes written to the remote console stream.",
	})
	TunnelDebugFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_tunnel_debug_frames_total",
		Help: "Total debug frames extracted from the console stream.",
	})
	MirrorBytesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xkdb_mirror_bytes_dropped_total",
		Help: "Total console bytes dropped by a full local serial mirror.",
	})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xkdb_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xkdb_build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrDiscoverySend = "discovery_send"
	ErrDiscoveryRecv = "discovery_recv"
	ErrSessionSend   = "session_send"
	ErrSessionRecv   = "session_recv"
	ErrTunnelRead    = "tunnel_read"
	ErrTunnelWrite   = "tunnel_write"
	ErrMirrorWrite   = "mirror_write"
)

func IncDiscoveryProbed()      { DiscoveryProbed.Inc(); atomic.AddUint64(&localDiscoveryProbed, 1) }
func IncDiscoveryAnswered()    { DiscoveryAnswered.Inc(); atomic.AddUint64(&localDiscoveryAnswered, 1) }
func IncDiscoveryDecodeError() { DiscoveryDecodeErrors.Inc() }
func IncDiscoveryTimeout()     { DiscoveryTimeouts.Inc() }

func IncSessionRequest(class string) { SessionRequests.WithLabelValues(class).Inc() }
func IncSessionTimeout()             { SessionTimeouts.Inc() }

func AddTunnelBytesIn(n int) {
	TunnelBytesIn.Add(float64(n))
	atomic.AddUint64(&localTunnelBytesIn, uint64(n))
}
func AddTunnelBytesOut(n int) {
	TunnelBytesOut.Add(float64(n))
	atomic.AddUint64(&localTunnelBytesOut, uint64(n))
}
func IncTunnelDebugFrame()   { TunnelDebugFrames.Inc() }
func AddMirrorDropped(n int) { MirrorBytesDropped.Add(float64(n)) }

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (call once at startup) and
// pre-registers error label series so the first error does not pay
// registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrDiscoverySend, ErrDiscoveryRecv, ErrSessionSend, ErrSessionRecv,
		ErrTunnelRead, ErrTunnelWrite, ErrMirrorWrite,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process).
var (
	localDiscoveryProbed   uint64
	localDiscoveryAnswered uint64
	localTunnelBytesIn     uint64
	localTunnelBytesOut    uint64
	localErrors            uint64
)

// Snapshot is a cheap copy of local counters, used by the periodic metrics logger.
type Snapshot struct {
	DiscoveryProbed   uint64
	DiscoveryAnswered uint64
	TunnelBytesIn     uint64
	TunnelBytesOut    uint64
	Errors            uint64
}

func Snap() Snapshot {
	return Snapshot{
		DiscoveryProbed:   atomic.LoadUint64(&localDiscoveryProbed),
		DiscoveryAnswered: atomic.LoadUint64(&localDiscoveryAnswered),
		TunnelBytesIn:     atomic.LoadUint64(&localTunnelBytesIn),
		TunnelBytesOut:    atomic.LoadUint64(&localTunnelBytesOut),
		Errors:            atomic.LoadUint64(&localErrors),
	}
}
