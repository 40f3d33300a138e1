package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/real-xinu/xkdb/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"discovery_probed", snap.DiscoveryProbed,
					"discovery_answered", snap.DiscoveryAnswered,
					"tunnel_bytes_in", snap.TunnelBytesIn,
					"tunnel_bytes_out", snap.TunnelBytesOut,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
