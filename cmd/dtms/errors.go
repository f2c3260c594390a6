package main

import "errors"

// Startup failures. Every one of them ends the process with exitError.
// Callers wrap them with context and classify with errors.Is.
var (
	// Configuration
	ErrConfig                   = errors.New("invalid configuration")
	ErrUnknownUser              = errors.New("unknown user")
	ErrUnsafeRootInvocation     = errors.New("refusing to run the player as root: pass -u <user>")
	ErrUnsafeTargetIdentity     = errors.New("target user resolves to root")
	ErrUnsafeRelativePlayerPath = errors.New("player path must be absolute when running as root")

	// Device
	ErrStatFailed = errors.New("cannot stat device")
	ErrNotADevice = errors.New("not a character or block device")
	ErrOpenFailed = errors.New("failed to open device")

	// Privilege
	ErrPrivilegeDropFailed = errors.New("failed to drop privileges")
)

// errDrainEOF reports a readable descriptor that returned no data.
// The readiness condition can never clear after it, so the loop treats it
// like a failed wait.
var errDrainEOF = errors.New("device returned end of file")
