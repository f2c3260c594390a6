//go:build linux

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// WaitReadable blocks in poll(2) until the device has data.
//
// There is no timeout: the daemon sleeps until the hardware produces input.
// Interrupted waits are retried. An error or hangup without pending data is
// returned as a failure, since the descriptor will never become quiet again.
func (d *Device) WaitReadable() error {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}

	for {
		fds[0].Revents = 0

		// -1 = wait indefinitely
		n, err := unix.Poll(fds, -1)
		if err != nil {
			// Handle interrupted system call (e.g., SIGCHLD from the player)
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll %s: %w", d.path, err)
		}
		if n == 0 {
			continue // nothing ready (shouldn't happen without a timeout)
		}

		rev := fds[0].Revents
		if rev&unix.POLLIN != 0 {
			return nil
		}
		if rev&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return fmt.Errorf("device error/hangup: %s (revents=%#x)", d.path, rev)
		}
	}
}
