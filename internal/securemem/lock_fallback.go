//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package securemem

import "errors"

var errLockUnsupported = errors.New("memory locking not supported on this platform")

// lockMemory reports locking as unavailable. Buffers still get zeroing,
// just not the anti-swap guarantee.
func lockMemory(data []byte) error {
	return errLockUnsupported
}

// unlockMemory has nothing to release on unsupported platforms.
func unlockMemory(data []byte) error {
	return nil
}
