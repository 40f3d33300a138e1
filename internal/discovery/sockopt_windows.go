//go:build windows

package discovery

// setSocketOptions is a no-op on Windows; net.UDPConn already permits
// broadcast sends without SO_BROADCAST in the standard library's runtime.
func setSocketOptions(fd uintptr) {}
