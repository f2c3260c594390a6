package main

import (
	"path/filepath"
	"time"
)

// Trigger behavior
const (
	// cooldown is the minimum time between two player launches.
	// Bursts of device activity inside this window are drained and ignored.
	cooldown = 2 * time.Second

	// drainBufSize is the read buffer used while emptying the device queue.
	drainBufSize = 1024
)

// Media
const (
	mediaRelPath = "data/dtms.mp3" // relative to installPrefix
)

// installPrefix is set at build time:
//
//	go build -ldflags "-X main.installPrefix=/usr/share/dtms" ./cmd/dtms
var installPrefix = "/usr/local/share/dtms"

// mediaPath returns the sound file handed to the player on every trigger.
func mediaPath() string {
	return filepath.Join(installPrefix, mediaRelPath)
}

// Process exit codes
const (
	exitOK    = 0
	exitError = 1
)

// Config discovery
const (
	configEnvOverride = "DTMS_CONFIG_DIR"
	configXDGSuffix   = "dtms"
)

var configFileNames = []string{"config.yaml", "config.yml", "config.toml"}
