package main

import (
	"log/slog"
	"os/exec"
	"time"
)

// dispatcher launches the player. The trigger loop ignores the result:
// playback is best effort.
type dispatcher interface {
	Dispatch() error
}

// playerRunner runs a playbackCommand and waits for it to exit.
// Standard streams are left nil, which connects them to the null device.
type playerRunner struct {
	cmd playbackCommand
}

func (r playerRunner) Dispatch() error {
	c := exec.Command(r.cmd.argv[0], r.cmd.argv[1:]...)
	c.Env = r.cmd.env
	return c.Run()
}

// loggedDispatcher records failed launches. It wraps the real dispatcher in
// main so the loop itself stays silent about player errors.
type loggedDispatcher struct {
	next   dispatcher
	logger *slog.Logger
}

func (d loggedDispatcher) Dispatch() error {
	start := time.Now()
	err := d.next.Dispatch()
	if err != nil {
		d.logger.Debug("player failed", "error", err, "elapsed", time.Since(start))
	}
	return err
}
