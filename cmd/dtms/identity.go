package main

import (
	"errors"
	"fmt"
	"os/user"
	"path/filepath"
	"slices"
	"strconv"
)

// rootUID is the privileged identity.
const rootUID = 0

// Identity is a numeric user identity plus, when it came from the user
// database, the name and home directory used for the player environment.
type Identity struct {
	UID  int
	GID  int
	Name string
	Home string

	// Groups are the supplementary group ids from the group database,
	// without the primary GID.
	Groups []int
}

// groupList returns the primary gid followed by the supplementary groups,
// in the order setgroups(2) should receive them.
func (id Identity) groupList() []int {
	groups := make([]int, 0, len(id.Groups)+1)
	if id.GID >= 0 {
		groups = append(groups, id.GID)
	}
	for _, g := range id.Groups {
		if !slices.Contains(groups, g) {
			groups = append(groups, g)
		}
	}
	return groups
}

func (id Identity) String() string {
	if id.Name != "" {
		return fmt.Sprintf("%s(%d)", id.Name, id.UID)
	}
	return strconv.Itoa(id.UID)
}

// lookupUser resolves a username through the system user database.
func lookupUser(name string) (Identity, error) {
	u, err := user.Lookup(name)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return Identity{}, fmt.Errorf("%w: %s", ErrUnknownUser, name)
		}
		return Identity{}, fmt.Errorf("%w: %s: %v", ErrUnknownUser, name, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s: non-numeric uid %q", ErrUnknownUser, name, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s: non-numeric gid %q", ErrUnknownUser, name, u.Gid)
	}

	groups, err := supplementaryGroups(u, gid)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s: %v", ErrUnknownUser, name, err)
	}

	return Identity{UID: uid, GID: gid, Name: u.Username, Home: u.HomeDir, Groups: groups}, nil
}

// supplementaryGroups lists the groups u belongs to besides primary, the
// same set initgroups(3) would install.
func supplementaryGroups(u *user.User, primary int) ([]int, error) {
	ids, err := u.GroupIds()
	if err != nil {
		return nil, fmt.Errorf("group list: %w", err)
	}
	var groups []int
	for _, s := range ids {
		g, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("non-numeric gid %q", s)
		}
		if g == primary || slices.Contains(groups, g) {
			continue
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// resolveIdentity picks the identity the player will run as.
//
// caller is the real identity of the process. target is the identity named
// with -u, or nil. A root caller must name a target, and that target must
// not be root itself.
func resolveIdentity(caller Identity, target *Identity) (Identity, error) {
	if target == nil {
		if caller.UID == rootUID {
			return Identity{}, ErrUnsafeRootInvocation
		}
		return caller, nil
	}
	if target.UID == rootUID {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnsafeTargetIdentity, target)
	}
	return *target, nil
}

// checkPlayerPath refuses a relative player path when the player would run
// as root, so the executable is never looked up in an attacker-controlled
// working directory.
func checkPlayerPath(id Identity, player string) error {
	if id.UID == rootUID && !filepath.IsAbs(player) {
		return fmt.Errorf("%w: %s", ErrUnsafeRelativePlayerPath, player)
	}
	return nil
}
