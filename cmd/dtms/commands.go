package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// playbackCommand is the player invocation, built once after the privilege
// drop and reused for every trigger.
//
// It is an argument vector, never a shell string: a player path with spaces
// or shell metacharacters stays a single argument.
type playbackCommand struct {
	argv []string
	env  []string // nil = inherit
}

// newPlaybackCommand composes "<player> <media>" for the given identity.
// When the identity came from the user database the player also gets that
// user's login environment (see userEnv).
func newPlaybackCommand(player, media string, id Identity, baseEnv []string) playbackCommand {
	cmd := playbackCommand{argv: []string{player, media}}
	if id.Name != "" {
		cmd.env = userEnv(baseEnv, id)
	}
	return cmd
}

// userVars are the caller variables that userEnv replaces.
var userVars = []string{"HOME=", "USER=", "LOGNAME=", "XDG_RUNTIME_DIR="}

// userEnv returns base with HOME, USER, LOGNAME and XDG_RUNTIME_DIR replaced
// for id. The runtime dir is where PipeWire and PulseAudio keep their sockets.
func userEnv(base []string, id Identity) []string {
	env := make([]string, 0, len(base)+len(userVars))
	for _, kv := range base {
		if slices.ContainsFunc(userVars, func(prefix string) bool { return strings.HasPrefix(kv, prefix) }) {
			continue
		}
		env = append(env, kv)
	}
	if id.Home != "" {
		env = append(env, "HOME="+id.Home)
	}
	return append(env,
		"USER="+id.Name,
		"LOGNAME="+id.Name,
		"XDG_RUNTIME_DIR="+runtimeDir(id.UID))
}

// runtimeDir is the per-user runtime directory systemd-logind creates.
func runtimeDir(uid int) string {
	return "/run/user/" + strconv.Itoa(uid)
}

func (c playbackCommand) String() string {
	return fmt.Sprintf("%q", c.argv)
}
