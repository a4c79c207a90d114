//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package securemem

import "golang.org/x/sys/unix"

// lockMemory pins the slice's pages so they are never swapped to disk.
// EPERM and ENOMEM mean the platform refused the lock, which degrades the
// buffer to unlocked rather than failing the allocation.
func lockMemory(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Mlock(data)
}

// unlockMemory releases a previously acquired lock.
func unlockMemory(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munlock(data)
}
