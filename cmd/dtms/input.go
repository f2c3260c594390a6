//go:build linux

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// validateDevice checks that path is a character or block device node.
func validateDevice(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStatFailed, path, err)
	}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFCHR, unix.S_IFBLK:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNotADevice, path)
	}
}

// Device is an open, non-blocking, read-only device node.
type Device struct {
	path string
	fd   int
	buf  []byte
}

// openDevice opens path for non-blocking reads. The descriptor is
// close-on-exec so the player never inherits it.
func openDevice(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}
	return newDevice(path, fd), nil
}

func newDevice(path string, fd int) *Device {
	return &Device{path: path, fd: fd, buf: make([]byte, drainBufSize)}
}

// Drain reads until the kernel reports nothing left (EAGAIN).
//
// A first read returning zero bytes means the other end is gone; that is
// reported as errDrainEOF. Later zero reads just end the drain.
func (d *Device) Drain() error {
	for first := true; ; first = false {
		n, err := unix.Read(d.fd, d.buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return nil
		case err != nil:
			return fmt.Errorf("read %s: %w", d.path, err)
		case n == 0:
			if first {
				return fmt.Errorf("read %s: %w", d.path, errDrainEOF)
			}
			return nil
		}
	}
}

// Close releases the descriptor. Closing twice is a no-op.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}
