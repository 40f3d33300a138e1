//go:build !windows

package discovery

import "golang.org/x/sys/unix"

// setSocketOptions enables SO_BROADCAST on the discovery socket so it may
// send to link-local broadcast addresses.
func setSocketOptions(fd uintptr) {
	_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
}
