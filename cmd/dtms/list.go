//go:build linux

package main

import (
	"fmt"
	"io"

	evdev "github.com/holoplot/go-evdev"
)

// listInputDevices prints the input event devices the caller can open, to
// help pick a value for -d. Devices that cannot be opened (permissions) are
// not listed.
func listInputDevices(w io.Writer) error {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return fmt.Errorf("list input devices: %w", err)
	}
	if len(paths) == 0 {
		fmt.Fprintln(w, "no readable input devices (run as root or add user to 'input' group)")
		return nil
	}
	for _, p := range paths {
		fmt.Fprintf(w, "%s\t%s\n", p.Path, p.Name)
	}
	return nil
}
