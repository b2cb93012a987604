// Package lockfile provides the cross-process exclusion lock guarding
// the mailbox hardware channel.
//
// The mailbox status and data registers are a single shared resource:
// two interleaved exchanges, even from different processes or targeting
// different sockets, would corrupt each other's in-flight transaction.
// An exclusive advisory flock on a well-known path is the serialization
// point; no further intra-process locking is required.
package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultPath is the well-known lock file shared by all mailbox users
// on the host.
const DefaultPath = "/var/lock/hsmp"

// Lock serializes mailbox exchanges across processes through an
// advisory file lock. The zero value is not usable; call New.
type Lock struct {
	path string
}

// New returns a Lock on the given path. An empty path selects
// DefaultPath.
func New(path string) *Lock {
	if path == "" {
		path = DefaultPath
	}
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// WithLock runs fn while holding an exclusive lock on the lock file.
// Acquisition blocks until the lock is free; there is no fairness
// guarantee beyond the OS scheduler's ordering. The lock is released
// on every return path, including when fn returns an error or panics.
func (l *Lock) WithLock(fn func() error) error {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return fmt.Errorf("opening lock file %s: %w", l.path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("locking %s: %w", l.path, err)
	}
	defer func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}()

	return fn()
}
