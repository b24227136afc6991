package tcp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setReuseAddr is the net.ListenConfig.Control hook that sets
// SO_REUSEADDR on the listening socket (spec §4.7, socket setup),
// matching the reference implementation's setsockopt call so a
// restarted server can rebind its port immediately.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
