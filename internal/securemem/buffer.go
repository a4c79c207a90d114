// Package securemem provides protected byte containers for transient secret
// material. Buffers are locked into RAM where the platform allows it, are
// always zeroed before release, and refuse any form of serialization.
package securemem

import (
	"fmt"
	"runtime"
	"sync"

	apperrors "github.com/agentsec/secrets/internal/errors"
)

// MaxLockableSize bounds a single buffer to the typical default RLIMIT_MEMLOCK
// soft limit on Linux, so an allocation never fails just because locking does.
const MaxLockableSize = 64 * 1024

// redactionMarker is rendered by every textual representation of a buffer.
const redactionMarker = "***PROTECTED***"

var (
	// ErrTooLarge indicates an allocation above MaxLockableSize.
	ErrTooLarge = apperrors.Wrap(apperrors.ErrInvalidInput, "buffer exceeds maximum lockable size")

	// ErrDestroyed indicates use of a buffer after Destroy.
	ErrDestroyed = apperrors.Wrap(apperrors.ErrInvalidInput, "buffer already destroyed")

	// ErrNotSerializable is returned by every marshaling entry point.
	// Protected memory must never reach a persisted or transmitted form.
	ErrNotSerializable = apperrors.New("securemem: buffer cannot be serialized")
)

// Buffer owns a mutable byte region holding secret material.
//
// The region is locked with mlock(2) on platforms that support it; a failed
// lock is recorded, not fatal, and queryable through Locked. Contents are
// overwritten with zeros on Zero and on Destroy, whichever exit path runs.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	locked    bool
	destroyed bool
}

// Allocate creates a zero-filled buffer of n bytes.
// Returns ErrTooLarge when n exceeds MaxLockableSize.
func Allocate(n int) (*Buffer, error) {
	if n < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "negative buffer size")
	}
	if n > MaxLockableSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, n, MaxLockableSize)
	}

	b := &Buffer{data: make([]byte, n)}
	b.locked = lockMemory(b.data) == nil
	return b, nil
}

// NewBuffer creates a buffer holding a copy of data. The caller remains
// responsible for zeroing its own copy.
func NewBuffer(data []byte) (*Buffer, error) {
	b, err := Allocate(len(data))
	if err != nil {
		return nil, err
	}
	copy(b.data, data)
	return b, nil
}

// NewBufferString creates a buffer holding a copy of the string's bytes.
func NewBufferString(value string) (*Buffer, error) {
	return NewBuffer([]byte(value))
}

// Bytes returns a copy of the buffer contents. The copy is ordinary memory;
// zero it as soon as it has served its purpose.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Len returns the buffer length. The length of a destroyed buffer is zero.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return 0
	}
	return len(b.data)
}

// Locked reports whether the region was successfully pinned with mlock.
// An unlocked buffer is still usable; it just lacks the anti-swap guarantee.
func (b *Buffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Zero deterministically overwrites every byte of the buffer.
// Safe to call multiple times and after Destroy.
func (b *Buffer) Zero() {
	b.mu.Lock()
	defer b.mu.Unlock()
	wipe(b.data)
}

// Destroy zeroes the buffer and releases the memory lock. The buffer is
// unusable afterwards; reads fail with ErrDestroyed.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	wipe(b.data)
	if b.locked {
		_ = unlockMemory(b.data)
		b.locked = false
	}
	b.destroyed = true
}

// wipe overwrites data with zeros. runtime.KeepAlive pins the slice so the
// writes cannot be elided as dead stores.
func wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// String renders the fixed redaction marker, never the contents.
func (b *Buffer) String() string { return redactionMarker }

// GoString renders the fixed redaction marker, never the contents.
func (b *Buffer) GoString() string { return redactionMarker }

// Format implements fmt.Formatter so %v, %s, %d, %x and friends all redact.
func (b *Buffer) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, redactionMarker)
}

// MarshalJSON refuses serialization of protected memory.
func (b *Buffer) MarshalJSON() ([]byte, error) { return nil, ErrNotSerializable }

// MarshalText refuses serialization of protected memory.
func (b *Buffer) MarshalText() ([]byte, error) { return nil, ErrNotSerializable }

// MarshalBinary refuses serialization of protected memory.
func (b *Buffer) MarshalBinary() ([]byte, error) { return nil, ErrNotSerializable }

// GobEncode refuses serialization of protected memory.
func (b *Buffer) GobEncode() ([]byte, error) { return nil, ErrNotSerializable }
