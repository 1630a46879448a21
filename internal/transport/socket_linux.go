//go:build linux

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSocketOptions clears IPV6_V6ONLY on fd so a udp6 listener also accepts
// IPv4-mapped addresses (section 4.5's dual-stack requirement).
func setSocketOptions(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
		if err == unix.ENOPROTOOPT {
			return nil
		}
		return fmt.Errorf("clear IPV6_V6ONLY: %w", err)
	}
	return nil
}

func platformControl(_, _ string, c syscall.RawConn) error {
	var sockoptErr error
	if err := c.Control(func(fd uintptr) { sockoptErr = setSocketOptions(fd) }); err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}
	return sockoptErr
}
