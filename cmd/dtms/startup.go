//go:build linux

package main

import (
	"log/slog"
	"os"
)

// host is the set of process-level operations startup performs, in the
// order it performs them. newHost wires the real ones.
type host struct {
	creds         credentials
	lookupUser    func(name string) (Identity, error)
	validate      func(path string) error
	open          func(path string) (eventSource, error)
	environ       func() []string
	newDispatcher func(cmd playbackCommand) dispatcher
}

func newHost() host {
	return host{
		creds:      osCredentials{},
		lookupUser: lookupUser,
		validate:   validateDevice,
		open: func(path string) (eventSource, error) {
			return openDevice(path)
		},
		environ: os.Environ,
		newDispatcher: func(cmd playbackCommand) dispatcher {
			return playerRunner{cmd: cmd}
		},
	}
}

// run performs the startup sequence and then blocks in the trigger loop.
//
// Order matters: every configuration check happens before the device is
// touched, the device is opened while still privileged, and privileges are
// dropped before the player command exists. Any error returned is a startup
// failure; a loop that ends because the wait failed returns nil.
func run(cfg Config, h host, logger *slog.Logger) error {
	dropper := newPrivilegeDropper(h.creds)
	caller := dropper.callerIdentity()

	var target *Identity
	if cfg.User != "" {
		id, err := h.lookupUser(cfg.User)
		if err != nil {
			return err
		}
		target = &id
	}

	id, err := resolveIdentity(caller, target)
	if err != nil {
		return err
	}
	if err := checkPlayerPath(id, cfg.Player); err != nil {
		return err
	}

	if err := h.validate(cfg.Device); err != nil {
		return err
	}

	src, err := h.open(cfg.Device)
	if err != nil {
		return err
	}
	defer src.Close()
	logger.Info("device opened", "device", cfg.Device)

	if err := dropper.Drop(id); err != nil {
		return err
	}
	logger.Info("privileges dropped", "uid", id.UID, "gid", id.GID, "user", id.Name)

	cmd := newPlaybackCommand(cfg.Player, mediaPath(), id, h.environ())
	d := loggedDispatcher{next: h.newDispatcher(cmd), logger: logger}

	logger.Info("waiting for device activity", "device", cfg.Device, "command", cmd.String(), "cooldown", cooldown)

	if err := runDaemon(newLoopState(src, d, logger)); err != nil {
		logger.Warn("trigger loop stopped", "error", err)
	}
	return nil
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	if err != nil {
		return exitError
	}
	return exitOK
}

