// Package domain defines the audit event type, its tamper-evident signature
// scheme, and the event/result enumerations.
package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// EventType identifies the category of a sensitive operation.
type EventType string

// Audit event types.
const (
	EventConfigAccess      EventType = "config_access"
	EventSecretRead        EventType = "secret_read"
	EventCredentialCreated EventType = "credential_created"
	EventCredentialUsed    EventType = "credential_used"
	EventCredentialRevoked EventType = "credential_revoked"
	EventCredentialCleaned EventType = "credential_cleaned"
	EventCryptoOperation   EventType = "crypto_operation"
	EventAuthentication    EventType = "authentication"
	EventAuthorization     EventType = "authorization"
	EventSecurityViolation EventType = "security_violation"
)

// Result is the outcome of an audited operation.
type Result string

// Audit results.
const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultDenied  Result = "denied"
)

// signingKeyInfo versions the HKDF derivation so the signature scheme can
// change without ambiguity about which algorithm produced a record.
const signingKeyInfo = "audit-event-signing-v1"

// Event is one append-only audit record. Once signed, any mutation to any
// field except Signature invalidates Verify.
type Event struct {
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Action    string         `json:"action,omitempty"`
	Result    Result         `json:"result"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Signature string         `json:"signature,omitempty"`
}

// Sign computes the event's HMAC-SHA256 signature under a key derived from
// signingKey via HKDF-SHA256, and stores it hex-encoded in Signature.
// Deriving separates the audit signing key from any other use of the
// configured key material.
func (e *Event) Sign(signingKey []byte) error {
	mac, err := e.computeMAC(signingKey)
	if err != nil {
		return err
	}
	e.Signature = hex.EncodeToString(mac)
	return nil
}

// Verify recomputes the signature and compares it in constant time.
// An unsigned event never verifies.
func (e *Event) Verify(signingKey []byte) bool {
	if e.Signature == "" {
		return false
	}

	expected, err := e.computeMAC(signingKey)
	if err != nil {
		return false
	}
	actual, err := hex.DecodeString(e.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(actual, expected)
}

func (e *Event) computeMAC(signingKey []byte) ([]byte, error) {
	derived, err := deriveSigningKey(signingKey)
	if err != nil {
		return nil, err
	}
	defer zero(derived)

	payload, err := e.signingPayload()
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, derived)
	mac.Write(payload)
	return mac.Sum(nil), nil
}

// signingPayload produces the canonical encoding of every field except
// Signature: a JSON object with lexicographically sorted keys, which
// encoding/json guarantees for maps. Timestamps are RFC 3339 in UTC with
// nanoseconds so the byte representation survives a store round trip.
func (e *Event) signingPayload() ([]byte, error) {
	payload := map[string]any{
		"event_type": string(e.EventType),
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"actor":      e.Actor,
		"resource":   e.Resource,
		"action":     e.Action,
		"result":     string(e.Result),
		"ip_address": e.IPAddress,
		"user_agent": e.UserAgent,
		"session_id": e.SessionID,
	}
	if e.Details != nil {
		detailsJSON, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal details: %w", err)
		}
		payload["details"] = json.RawMessage(detailsJSON)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize event: %w", err)
	}
	return encoded, nil
}

// deriveSigningKey stretches the configured key into a dedicated 32-byte
// HMAC key with HKDF-SHA256.
func deriveSigningKey(signingKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, signingKey, nil, []byte(signingKeyInfo))
	derived := make([]byte, 32)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return derived, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
