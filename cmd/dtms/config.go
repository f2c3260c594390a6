package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/BurntSushi/xdg"
	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk configuration. Every key can also be given
// on the command line; flags win.
//
// The cooldown window and the media file are deliberately absent: both are
// fixed at build time.
type Config struct {
	// Device node to watch (character or block device)
	Device string `yaml:"device" toml:"device"`

	// Player executable, invoked as: <player> <media>
	Player string `yaml:"player" toml:"player"`

	// User to run the player as. Required when started as root.
	User string `yaml:"user,omitempty" toml:"user"`

	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// DefaultConfig returns a Config with defaults filled in.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level: string(LogLevelInfo),
		},
	}
}

// LoadConfigFile reads a config file on top of the defaults.
//
// Files ending in .toml are decoded as TOML, anything else as YAML. Unknown
// keys are rejected in both formats so typos surface at startup.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	path = ExpandPath(path)

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("decode config toml: unknown key %q", undecoded[0].String())
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// discoverConfigFile looks for a config file in the XDG config locations
// ($DTMS_CONFIG_DIR first). It returns "" when there is none.
func discoverConfigFile() string {
	paths := xdg.Paths{
		Override:  os.Getenv(configEnvOverride),
		XDGSuffix: configXDGSuffix,
	}
	for _, name := range configFileNames {
		if p, err := paths.ConfigFile(name); err == nil && p != "" {
			return p
		}
	}
	return ""
}

// FlagOverrides holds values for the flags the user actually set.
// A nil pointer leaves the config value alone.
type FlagOverrides struct {
	Device   *string
	Player   *string
	User     *string
	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Device != nil {
		cfg.Device = *o.Device
	}
	if o.Player != nil {
		cfg.Player = *o.Player
	}
	if o.User != nil {
		cfg.User = *o.User
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks the config after defaults, file and flags are merged.
// Path values are tilde-expanded in place.
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("%w: invalid device file: pass -d <device>", ErrConfig)
	}
	if c.Player == "" {
		return fmt.Errorf("%w: invalid path: pass -p with the path to an mp3 player", ErrConfig)
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	c.Device = ExpandPath(c.Device)
	c.Player = ExpandPath(c.Player)
	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && p[1] == '/' {
		return filepath.Join(home, p[2:])
	}
	return p
}
