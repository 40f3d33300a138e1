package main

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/real-xinu/xkdb/internal/logging"
)

// mdnsServiceType is the service backend servers may optionally advertise
// under; browsing for it supplements the broadcast discovery round with
// unicast addresses of servers that advertise themselves. mDNS is link-local
// multicast, so it does not reach servers on routed subnets.
const mdnsServiceType = "_xkdb._udp"

// browseMDNS returns the IPv4 addresses of any backend servers advertising
// mdnsServiceType within timeout. Errors are logged and treated as "found
// nothing": mDNS is a supplement to broadcast discovery, never a dependency.
func browseMDNS(ctx context.Context, timeout time.Duration) []net.IP {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		logging.L().Warn("mdns_resolver_failed", "error", err)
		return nil
	}
	entries := make(chan *zeroconf.ServiceEntry)
	var found []net.IP
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			found = append(found, e.AddrIPv4...)
		}
	}()

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := resolver.Browse(browseCtx, mdnsServiceType, "local.", entries); err != nil {
		logging.L().Warn("mdns_browse_failed", "error", err)
		return nil
	}
	<-browseCtx.Done()
	<-done
	return found
}
