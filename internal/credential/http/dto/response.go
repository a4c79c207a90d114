package dto

import (
	"time"

	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	credentialUseCase "github.com/agentsec/secrets/internal/credential/usecase"
)

// RegisterCredentialResponse is returned after a successful registration.
type RegisterCredentialResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CredentialResponse describes a credential record. Value hashes are never
// exposed.
type CredentialResponse struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	Status                  string            `json:"status"`
	CreatedAt               time.Time         `json:"created_at"`
	ExpiresAt               *time.Time        `json:"expires_at,omitempty"`
	LastRotated             *time.Time        `json:"last_rotated,omitempty"`
	RotationIntervalSeconds int64             `json:"rotation_interval_seconds,omitempty"`
	Metadata                map[string]string `json:"metadata,omitempty"`
}

// ListCredentialsResponse wraps the credential list.
type ListCredentialsResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

// MapRecordToResponse maps a domain record to its response representation.
func MapRecordToResponse(record credentialDomain.Record) CredentialResponse {
	return CredentialResponse{
		ID:                      record.ID,
		Name:                    record.Name,
		Status:                  string(record.Status),
		CreatedAt:               record.CreatedAt,
		ExpiresAt:               record.ExpiresAt,
		LastRotated:             record.LastRotated,
		RotationIntervalSeconds: int64(record.RotationInterval / time.Second),
		Metadata:                record.Metadata,
	}
}

// MapRecordsToListResponse maps domain records to a list response.
func MapRecordsToListResponse(records []credentialDomain.Record) ListCredentialsResponse {
	credentials := make([]CredentialResponse, 0, len(records))
	for _, record := range records {
		credentials = append(credentials, MapRecordToResponse(record))
	}
	return ListCredentialsResponse{Credentials: credentials}
}

// VerifyCredentialResponse reports the verification outcome.
type VerifyCredentialResponse struct {
	Valid bool `json:"valid"`
}

// CredentialStatusResponse reports a credential's lifecycle status.
type CredentialStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// LeakResponse describes a reported leak.
type LeakResponse struct {
	CredentialID string    `json:"credential_id"`
	DetectedAt   time.Time `json:"detected_at"`
	Source       string    `json:"source"`
	Evidence     string    `json:"evidence"`
	Severity     string    `json:"severity"`
}

// ListLeaksResponse wraps the leak list.
type ListLeaksResponse struct {
	Leaks []LeakResponse `json:"leaks"`
}

// MapLeakToResponse maps a domain leak to its response representation.
func MapLeakToResponse(leak credentialDomain.Leak) LeakResponse {
	return LeakResponse{
		CredentialID: leak.CredentialID,
		DetectedAt:   leak.DetectedAt,
		Source:       string(leak.Source),
		Evidence:     leak.Evidence,
		Severity:     string(leak.Severity),
	}
}

// MapLeaksToListResponse maps domain leaks to a list response.
func MapLeaksToListResponse(leaks []credentialDomain.Leak) ListLeaksResponse {
	out := make([]LeakResponse, 0, len(leaks))
	for _, leak := range leaks {
		out = append(out, MapLeakToResponse(leak))
	}
	return ListLeaksResponse{Leaks: out}
}

// RotationNeededResponse lists credentials due for rotation.
type RotationNeededResponse struct {
	CredentialIDs []string `json:"credential_ids"`
}

// CleanupResponse reports how many records a cleanup pass removed.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// ScanReportResponse summarizes a leak scan run.
type ScanReportResponse struct {
	Flagged       int      `json:"flagged"`
	BackendErrors []string `json:"backend_errors,omitempty"`
}

// MapScanReportToResponse maps a scan report to its response representation.
func MapScanReportToResponse(report credentialUseCase.ScanReport) ScanReportResponse {
	errs := make([]string, 0, len(report.BackendErrors))
	for _, err := range report.BackendErrors {
		errs = append(errs, err.Error())
	}
	return ScanReportResponse{
		Flagged:       report.Flagged,
		BackendErrors: errs,
	}
}
