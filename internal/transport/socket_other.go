//go:build !linux && !darwin

package transport

import "syscall"

// platformControl is a no-op on platforms where we have not grounded an
// IPV6_V6ONLY-clearing implementation. The listener still binds udp6; it
// just won't accept IPv4-mapped addresses on these platforms.
func platformControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
