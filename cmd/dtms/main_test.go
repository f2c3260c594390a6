//go:build linux

package main

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
)

// recordingHost is a host whose every process-level action is logged, so
// tests can assert both what happened and in which order.
type recordingHost struct {
	creds      *fakeCredentials
	users      map[string]Identity
	validateFn func(string) error
	openErr    error
	src        *scriptedSource
	dispatched *countingDispatcher

	actions []string
	cmd     playbackCommand
}

func newRecordingHost(creds *fakeCredentials) *recordingHost {
	return &recordingHost{
		creds:      creds,
		users:      map[string]Identity{"eleni": {UID: 1000, GID: 100, Name: "eleni", Home: "/home/eleni", Groups: []int{29}}},
		validateFn: func(string) error { return nil },
		src:        &scriptedSource{},
		dispatched: &countingDispatcher{},
	}
}

func (r *recordingHost) host() host {
	return host{
		creds: r.creds,
		lookupUser: func(name string) (Identity, error) {
			r.actions = append(r.actions, "lookup "+name)
			id, ok := r.users[name]
			if !ok {
				return Identity{}, ErrUnknownUser
			}
			return id, nil
		},
		validate: func(path string) error {
			r.actions = append(r.actions, "validate "+path)
			return r.validateFn(path)
		},
		open: func(path string) (eventSource, error) {
			r.actions = append(r.actions, "open "+path)
			if r.openErr != nil {
				return nil, r.openErr
			}
			return r.src, nil
		},
		environ: func() []string { return []string{"PATH=/usr/bin", "HOME=/root"} },
		newDispatcher: func(cmd playbackCommand) dispatcher {
			r.actions = append(r.actions, "compose")
			r.cmd = cmd
			return r.dispatched
		},
	}
}

func (r *recordingHost) did(action string) bool {
	for _, a := range r.actions {
		if strings.HasPrefix(a, action) {
			return true
		}
	}
	return false
}

func (r *recordingHost) dropped() bool {
	for _, c := range r.creds.calls {
		if strings.HasPrefix(c, "setresuid") {
			return true
		}
	}
	return false
}

func runMain(t *testing.T, h *recordingHost, args ...string) (int, string, string) {
	t.Helper()
	isolateXDG(t)
	var stdout, stderr bytes.Buffer
	code := realMain(args, &stdout, &stderr, h.host())
	return code, stdout.String(), stderr.String()
}

func TestRealMain_HelpAnywhereDoesNothingElse(t *testing.T) {
	for _, args := range [][]string{
		{"-h"},
		{"--help"},
		{"-d", "/etc/passwd", "-h"},
		{"-u", "nobody-here", "-p", "mpv", "--help", "--bogus"},
	} {
		h := newRecordingHost(newFakeRoot())
		code, stdout, _ := runMain(t, h, args...)

		if code != exitOK {
			t.Errorf("%q: exit %d, want %d", args, code, exitOK)
		}
		if !strings.Contains(stdout, "USAGE:") {
			t.Errorf("%q: usage not printed", args)
		}
		if len(h.actions) != 0 || len(h.creds.calls) != 0 {
			t.Errorf("%q: unexpected actions %v %v", args, h.actions, h.creds.calls)
		}
	}
}

func TestRealMain_Version(t *testing.T) {
	h := newRecordingHost(newFakeRoot())
	code, stdout, _ := runMain(t, h, "--version")
	if code != exitOK || !strings.Contains(stdout, version) {
		t.Errorf("exit %d, stdout %q", code, stdout)
	}
	if len(h.actions) != 0 {
		t.Errorf("unexpected actions %v", h.actions)
	}
}

func TestRealMain_BadArguments(t *testing.T) {
	for _, args := range [][]string{
		{"--bogus"},
		{"-d", "/dev/null", "-p", "/usr/bin/mpv", "extra"},
		{"-d"},
	} {
		h := newRecordingHost(newFakeUser(1000, 100))
		code, _, stderr := runMain(t, h, args...)
		if code != exitError {
			t.Errorf("%q: exit %d, want %d", args, code, exitError)
		}
		if !strings.Contains(stderr, "dtms -h") {
			t.Errorf("%q: expected help hint, got %q", args, stderr)
		}
		if len(h.actions) != 0 {
			t.Errorf("%q: unexpected actions %v", args, h.actions)
		}
	}
}

func TestRealMain_MissingDeviceOrPlayer(t *testing.T) {
	for _, args := range [][]string{
		{"-p", "/usr/bin/mpv"},
		{"-d", "/dev/null"},
	} {
		h := newRecordingHost(newFakeUser(1000, 100))
		if code, _, _ := runMain(t, h, args...); code != exitError {
			t.Errorf("%q: exit %d, want %d", args, code, exitError)
		}
		if len(h.actions) != 0 {
			t.Errorf("%q: unexpected actions %v", args, h.actions)
		}
	}
}

func TestRealMain_RegularFileNeverOpened(t *testing.T) {
	h := newRecordingHost(newFakeUser(1000, 100))
	h.validateFn = validateDevice

	code, _, stderr := runMain(t, h, "-d", "/etc/passwd", "-p", "/usr/bin/mpv")

	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if h.did("open") {
		t.Error("device was opened")
	}
	if len(h.creds.calls) != 0 {
		t.Errorf("privilege calls made: %v", h.creds.calls)
	}
	if !strings.Contains(stderr, ErrNotADevice.Error()) {
		t.Errorf("expected %q in stderr, got %q", ErrNotADevice, stderr)
	}
}

func TestRealMain_RootWithoutUserRejectedBeforeOpen(t *testing.T) {
	h := newRecordingHost(newFakeRoot())

	code, _, _ := runMain(t, h, "-d", "/dev/null", "-p", "/usr/bin/mpv")

	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if h.did("validate") || h.did("open") {
		t.Errorf("device touched: %v", h.actions)
	}
	if len(h.creds.calls) != 0 {
		t.Errorf("privilege calls made: %v", h.creds.calls)
	}
}

func TestRealMain_UnknownUser(t *testing.T) {
	h := newRecordingHost(newFakeRoot())

	code, _, _ := runMain(t, h, "-d", "/dev/null", "-p", "/usr/bin/mpv", "-u", "ghost")

	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if h.did("open") || h.dropped() {
		t.Errorf("unexpected actions %v %v", h.actions, h.creds.calls)
	}
}

func TestRealMain_TargetRootRejected(t *testing.T) {
	h := newRecordingHost(newFakeRoot())
	h.users["admin"] = Identity{UID: 0, GID: 0, Name: "admin"}

	code, _, _ := runMain(t, h, "-d", "/dev/null", "-p", "/usr/bin/mpv", "-u", "admin")

	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if h.did("open") || h.dropped() {
		t.Errorf("unexpected actions %v %v", h.actions, h.creds.calls)
	}
}

func TestRealMain_RootWithUserIdleDevice(t *testing.T) {
	h := newRecordingHost(newFakeRoot())
	h.validateFn = validateDevice

	// The scripted source has no wake-ups: the first wait fails, which is
	// how an idle device that is eventually torn down looks to the loop.
	code, _, stderr := runMain(t, h, "-d", "/dev/null", "-p", "/usr/bin/mpv", "-u", "eleni")

	if code != exitOK {
		t.Fatalf("exit %d, want %d (stderr %q)", code, exitOK, stderr)
	}
	if h.dispatched.calls != 0 {
		t.Errorf("player ran %d times without input", h.dispatched.calls)
	}

	want := []string{"lookup eleni", "validate /dev/null", "open /dev/null", "compose"}
	if strings.Join(h.actions, ",") != strings.Join(want, ",") {
		t.Errorf("actions = %v, want %v", h.actions, want)
	}
	if !h.dropped() {
		t.Error("privileges were not dropped")
	}
	if r, e, s := h.creds.Getresuid(); r != 1000 || e != 1000 || s != 1000 {
		t.Errorf("uids = %d/%d/%d after drop", r, e, s)
	}
	if !slices.Equal(h.creds.groups, []int{100, 29}) {
		t.Errorf("groups = %v after drop, want [100 29]", h.creds.groups)
	}
	if h.src.closed != 1 {
		t.Errorf("device closed %d times, want 1", h.src.closed)
	}
	if !strings.Contains(stderr, "trigger loop stopped") {
		t.Errorf("expected loop shutdown warning, got %q", stderr)
	}
}

func TestRealMain_HiddevScenario(t *testing.T) {
	h := newRecordingHost(newFakeRoot())
	h.src.wakes = []error{nil, nil}

	code, _, _ := runMain(t, h, "-d", "/dev/usb/hiddev0", "-u", "eleni", "-p", "/usr/bin/mpv")

	if code != exitOK {
		t.Fatalf("exit %d, want %d", code, exitOK)
	}
	// Two wake-ups with the real clock land inside one cooldown window.
	if h.dispatched.calls != 1 {
		t.Errorf("dispatches = %d, want 1", h.dispatched.calls)
	}
	want := []string{"/usr/bin/mpv", mediaPath()}
	if strings.Join(h.cmd.argv, " ") != strings.Join(want, " ") {
		t.Errorf("argv = %q, want %q", h.cmd.argv, want)
	}
	if h.src.drains != 2 {
		t.Errorf("drains = %d, want 2", h.src.drains)
	}
}

func TestRealMain_DropFailureClosesDevice(t *testing.T) {
	creds := newFakeRoot()
	creds.failSetresuid = errors.New("setresuid: operation not permitted")
	h := newRecordingHost(creds)

	code, _, stderr := runMain(t, h, "-d", "/dev/null", "-p", "/usr/bin/mpv", "-u", "eleni")

	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if h.src.closed != 1 {
		t.Errorf("device closed %d times, want 1", h.src.closed)
	}
	if h.did("compose") {
		t.Error("player command composed after failed drop")
	}
	if h.src.next != 0 {
		t.Error("trigger loop entered after failed drop")
	}
	if !strings.Contains(stderr, ErrPrivilegeDropFailed.Error()) {
		t.Errorf("expected %q in stderr, got %q", ErrPrivilegeDropFailed, stderr)
	}
}

func TestRealMain_OpenFailure(t *testing.T) {
	h := newRecordingHost(newFakeUser(1000, 100))
	h.openErr = ErrOpenFailed

	code, _, stderr := runMain(t, h, "-d", "/dev/null", "-p", "/usr/bin/mpv")

	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if h.dropped() {
		t.Error("privileges dropped after failed open")
	}
	if !strings.Contains(stderr, "tip=") {
		t.Errorf("expected permission tip, got %q", stderr)
	}
}

func TestRealMain_UnprivilegedCallerRunsAsSelf(t *testing.T) {
	h := newRecordingHost(newFakeUser(1000, 100))

	code, _, _ := runMain(t, h, "-d", "/dev/null", "-p", "mpv")

	if code != exitOK {
		t.Fatalf("exit %d, want %d", code, exitOK)
	}
	if h.cmd.env != nil {
		t.Errorf("expected inherited environment, got %q", h.cmd.env)
	}
	if h.cmd.argv[0] != "mpv" {
		t.Errorf("argv = %q", h.cmd.argv)
	}
}

func TestRealMain_ConfigFile(t *testing.T) {
	h := newRecordingHost(newFakeRoot())
	cfg := writeFile(t, "dtms.yaml", "device: /dev/input/event3\nplayer: /usr/bin/mpv\nuser: eleni\n")

	code, _, _ := runMain(t, h, "-c", cfg, "-d", "/dev/input/event5")

	if code != exitOK {
		t.Fatalf("exit %d, want %d", code, exitOK)
	}
	if !h.did("open /dev/input/event5") {
		t.Errorf("flag did not override config device: %v", h.actions)
	}
	if !h.did("lookup eleni") {
		t.Errorf("config user not used: %v", h.actions)
	}
}

func TestRealMain_BadConfigFile(t *testing.T) {
	h := newRecordingHost(newFakeRoot())
	cfg := writeFile(t, "dtms.yaml", "device: [\n")

	code, _, stderr := runMain(t, h, "-c", cfg)

	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, ErrConfig.Error()) {
		t.Errorf("expected config error, got %q", stderr)
	}
	if len(h.actions) != 0 {
		t.Errorf("unexpected actions %v", h.actions)
	}
}
