//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

const version = "1.0.0"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "dtms v%s\n", version)
	fmt.Fprintln(w, "Plays a sound when a device node sees activity")
}

func printUsage(w io.Writer) {
	printVersion(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  dtms -d <device> -p <player> [-u <user>] [OPTIONS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DESCRIPTION:")
	fmt.Fprintln(w, "  Watches a character or block device and runs the player with the")
	fmt.Fprintln(w, "  bundled sound whenever the device produces input. Triggers closer")
	fmt.Fprintf(w, "  than %s apart are ignored.\n", cooldown)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -h, --help")
	fmt.Fprintln(w, "        Print this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -d, --device string")
	fmt.Fprintln(w, "        Path to the device")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -p, --player string")
	fmt.Fprintln(w, "        Path to the mp3 player (must be absolute when running as root)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -u, --user string")
	fmt.Fprintln(w, "        Username of the user that runs the player (required when started as root)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -c, --config string")
	fmt.Fprintf(w, "        YAML or TOML config file (default: $%s/config.yaml, then $XDG_CONFIG_HOME/%s/config.yaml)\n", configEnvOverride, configXDGSuffix)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -l, --list")
	fmt.Fprintln(w, "        List input event devices and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --log-level string")
	fmt.Fprintln(w, "        Log level: error, warn, info, debug (default \"info\")")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -V, --version")
	fmt.Fprintln(w, "        Print version and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  dtms -d /dev/usb/hiddev0 -u eleni -p /usr/bin/mpv")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTES:")
	fmt.Fprintln(w, "  - The device is opened before privileges are dropped, so it may be root-only")
	fmt.Fprintf(w, "  - Sound file: %s\n", mediaPath())
	fmt.Fprintln(w)
}

// helpRequested reports whether -h/--help appears anywhere in args.
// Help wins over every other flag, valid or not.
func helpRequested(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" || arg == "-help" {
			return true
		}
	}
	return false
}

// cliOptions is the parsed command line.
type cliOptions struct {
	configPath  string
	list        bool
	showVersion bool
	overrides   FlagOverrides
}

func parseArgs(args []string) (cliOptions, error) {
	var (
		opts     cliOptions
		device   string
		player   string
		username string
		logLevel string
	)

	fs := flag.NewFlagSet("dtms", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&device, "device", "d", "", "path to the device")
	fs.StringVarP(&player, "player", "p", "", "path to the mp3 player")
	fs.StringVarP(&username, "user", "u", "", "username of the user that runs the player")
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file")
	fs.BoolVarP(&opts.list, "list", "l", false, "list input event devices")
	fs.StringVar(&logLevel, "log-level", string(LogLevelInfo), "log level")
	fs.BoolVarP(&opts.showVersion, "version", "V", false, "print version")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	// Only flags given on the command line override the config file.
	if fs.Changed("device") {
		opts.overrides.Device = &device
	}
	if fs.Changed("player") {
		opts.overrides.Player = &player
	}
	if fs.Changed("user") {
		opts.overrides.User = &username
	}
	if fs.Changed("log-level") {
		opts.overrides.LogLevel = &logLevel
	}
	return opts, nil
}

// loadConfig merges defaults, the config file and the flag overrides.
func loadConfig(opts cliOptions) (Config, error) {
	cfg := DefaultConfig()

	path := opts.configPath
	if path == "" {
		path = discoverConfigFile()
	}
	if path != "" {
		var err error
		if cfg, err = LoadConfigFile(path); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
		}
	}

	opts.overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// realMain runs the program and returns the exit status.
func realMain(args []string, stdout, stderr io.Writer, h host) int {
	if helpRequested(args) {
		printUsage(stdout)
		return exitOK
	}

	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		fmt.Fprintln(stderr, "try 'dtms -h' for help")
		return exitError
	}
	if opts.showVersion {
		printVersion(stdout)
		return exitOK
	}
	if opts.list {
		if err := listInputDevices(stdout); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitError
		}
		return exitOK
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}

	// Validate already checked the level.
	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(stderr, level)

	logger.Debug("starting dtms", "version", version)
	logger.Debug("configuration",
		"device", cfg.Device,
		"player", cfg.Player,
		"user", cfg.User,
		"media", mediaPath(),
		"log_level", cfg.Logging.Level)

	err = run(cfg, h, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		if errors.Is(err, ErrOpenFailed) {
			logger.Error("the device must be readable by the starting user", "tip", "start as root and pass -u <user>")
		}
	}
	return exitCode(err)
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr, newHost()))
}
