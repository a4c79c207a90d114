package domain

import "runtime"

// Zero securely overwrites a byte slice with zeros to clear sensitive data
// from memory. The KeepAlive pin stops the writes from being elided.
func Zero(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
