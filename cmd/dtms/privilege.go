//go:build linux

package main

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// credentials is the slice of the kernel credential API the drop needs.
// Tests substitute a fake.
type credentials interface {
	Getuid() int
	Getgid() int
	Geteuid() int
	Getresuid() (ruid, euid, suid int)
	Setgroups(gids []int) error
	Setresgid(rgid, egid, sgid int) error
	Setresuid(ruid, euid, suid int) error
}

// osCredentials talks to the kernel. The set* calls apply to every thread of
// the process.
type osCredentials struct{}

func (osCredentials) Getuid() int                 { return unix.Getuid() }
func (osCredentials) Getgid() int                 { return unix.Getgid() }
func (osCredentials) Geteuid() int                { return unix.Geteuid() }
func (osCredentials) Getresuid() (int, int, int)  { return unix.Getresuid() }
func (osCredentials) Setresgid(r, e, s int) error { return unix.Setresgid(r, e, s) }
func (osCredentials) Setresuid(r, e, s int) error { return unix.Setresuid(r, e, s) }
func (osCredentials) Setgroups(gids []int) error  { return syscall.Setgroups(gids) }

// privilegeDropper switches the process to the target identity once.
type privilegeDropper struct {
	creds     credentials
	attempted bool
}

func newPrivilegeDropper(creds credentials) *privilegeDropper {
	return &privilegeDropper{creds: creds}
}

// callerIdentity returns the real identity of the process.
func (p *privilegeDropper) callerIdentity() Identity {
	return Identity{UID: p.creds.Getuid(), GID: p.creds.Getgid()}
}

// Drop permanently switches real, effective and saved ids to id.
//
// Group changes need privilege; they are only made while the effective uid
// is root, and install the primary plus supplementary groups of id. An unprivileged caller can still collapse its uids onto its own
// real uid. A second call fails without touching credentials.
func (p *privilegeDropper) Drop(id Identity) error {
	if p.attempted {
		return fmt.Errorf("%w: already attempted", ErrPrivilegeDropFailed)
	}
	p.attempted = true

	if p.creds.Geteuid() == rootUID {
		if err := p.creds.Setgroups(id.groupList()); err != nil {
			return fmt.Errorf("%w: setgroups: %w", ErrPrivilegeDropFailed, err)
		}
		if id.GID >= 0 {
			if err := p.creds.Setresgid(id.GID, id.GID, id.GID); err != nil {
				return fmt.Errorf("%w: setresgid %d: %w", ErrPrivilegeDropFailed, id.GID, err)
			}
		}
	}

	if err := p.creds.Setresuid(id.UID, id.UID, id.UID); err != nil {
		return fmt.Errorf("%w: setresuid %d: %w", ErrPrivilegeDropFailed, id.UID, err)
	}

	ruid, euid, suid := p.creds.Getresuid()
	if ruid != id.UID || euid != id.UID || suid != id.UID {
		return fmt.Errorf("%w: uids are %d/%d/%d, want %d", ErrPrivilegeDropFailed, ruid, euid, suid, id.UID)
	}
	return nil
}
