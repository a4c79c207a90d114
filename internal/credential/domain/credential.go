// Package domain defines credential lifecycle types: the hash-backed
// credential record, its status machine, access history, and leak reports.
package domain

import (
	"time"
)

// Status is the lifecycle state of a credential record.
type Status string

// Credential statuses.
const (
	StatusActive          Status = "active"
	StatusExpired         Status = "expired"
	StatusRevoked         Status = "revoked"
	StatusCompromised     Status = "compromised"
	StatusPendingRotation Status = "pending_rotation"
)

// Record is a registered credential. The plaintext value is never stored;
// only a one-way hash used for verification.
type Record struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ValueHash        string            `json:"value_hash"`
	Status           Status            `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	LastRotated      *time.Time        `json:"last_rotated,omitempty"`
	RotationInterval time.Duration     `json:"rotation_interval,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// TTLExpired reports whether the record's TTL has lapsed at now. Records
// without an expiry never expire.
func (r *Record) TTLExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// RotationDue reports whether the record is past its rotation interval at
// now. Records without an interval are never due.
func (r *Record) RotationDue(now time.Time) bool {
	if r.RotationInterval <= 0 {
		return false
	}
	since := r.CreatedAt
	if r.LastRotated != nil {
		since = *r.LastRotated
	}
	return now.After(since.Add(r.RotationInterval))
}

// Access is one verification attempt against a credential. Kept in a
// bounded per-credential history for anomaly detection.
type Access struct {
	Time    time.Time `json:"time"`
	Success bool      `json:"success"`
}

// LeakSource identifies where a credential leak was detected.
type LeakSource string

// Leak sources.
const (
	LeakSourceLog         LeakSource = "log"
	LeakSourceGitHistory  LeakSource = "git_history"
	LeakSourceEnvironment LeakSource = "environment"
	LeakSourceMemoryDump  LeakSource = "memory_dump"
)

// Severity grades a leak report.
type Severity string

// Leak severities.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Leak is an immutable record of a detected or reported credential leak.
type Leak struct {
	CredentialID string     `json:"credential_id"`
	DetectedAt   time.Time  `json:"detected_at"`
	Source       LeakSource `json:"source"`
	Evidence     string     `json:"evidence"`
	Severity     Severity   `json:"severity"`
}
