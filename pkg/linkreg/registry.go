// Package linkreg tracks host file identities during a directory pass so
// that additional names of an already copied file become hardlinks in the
// target image instead of second copies.
package linkreg

import "fmt"

// Key identifies a physical file on the host: device id plus inode number.
type Key struct {
	Dev uint64
	Ino uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Dev, k.Ino)
}

// Registry maps identities to the first name registered for them.
// The zero value is not usable; call New.
type Registry struct {
	names map[Key]string
}

func New() *Registry {
	return &Registry{names: make(map[Key]string)}
}

// RegisterOrLookup returns the canonical name stored for key and true if
// the key is known. Otherwise it stores name as the canonical name and
// returns "", false: the caller copies the content and later names link
// to it. A known key is never re-registered.
func (r *Registry) RegisterOrLookup(key Key, name string) (string, bool) {
	if existing, ok := r.names[key]; ok {
		return existing, true
	}
	r.names[key] = name
	return "", false
}

// Lookup reports the canonical name for key without registering anything.
// It is for diagnostics only; copying goes through RegisterOrLookup so that
// the check and the insert cannot drift apart.
func (r *Registry) Lookup(key Key) (string, bool) {
	name, ok := r.names[key]
	return name, ok
}

// Len is the number of distinct identities seen since the last Clear.
func (r *Registry) Len() int {
	return len(r.names)
}

// Clear forgets every identity. It must only be called between directory
// passes, never during one.
func (r *Registry) Clear() {
	clear(r.names)
}
