// Package idmap computes the owner, group and permission bits written to
// the target image for a host entry.
package idmap

import "io/fs"

// Policy is the ownership/permission transformation applied to every
// populated entity.
type Policy struct {
	// SquashUIDs forces owner and group to root:root.
	SquashUIDs bool
	// SquashPerms clears the group and other permission bits.
	SquashPerms bool
	// Shift is subtracted from host owner and group ids.
	Shift int64
}

// Apply maps host ids to image ids. The shift wraps the same way unsigned
// uid_t arithmetic does; squash is checked last and always wins.
func (p Policy) Apply(uid, gid uint32) (uint32, uint32) {
	uid = uint32(int64(uid) - p.Shift)
	gid = uint32(int64(gid) - p.Shift)
	if p.SquashUIDs {
		return 0, 0
	}
	return uid, gid
}

// Perm returns the permission, setuid, setgid and sticky bits for mode in
// the unix octal layout used by the image.
func (p Policy) Perm(mode fs.FileMode) uint32 {
	perm := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		perm |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		perm |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		perm |= 0o1000
	}
	return p.SquashBits(perm)
}

// SquashBits applies SquashPerms to raw octal bits.
func (p Policy) SquashBits(perm uint32) uint32 {
	if p.SquashPerms {
		perm &^= 0o077
	}
	return perm
}
