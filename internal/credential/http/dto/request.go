// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	customValidation "github.com/agentsec/secrets/internal/validation"
)

// RegisterCredentialRequest contains the parameters for registering a credential.
type RegisterCredentialRequest struct {
	Name                    string            `json:"name"`
	Value                   string            `json:"value"`
	ExpiresInSeconds        int64             `json:"expires_in_seconds"`
	RotationIntervalSeconds int64             `json:"rotation_interval_seconds"`
	Metadata                map[string]string `json:"metadata"`
}

// Validate checks if the register credential request is valid.
func (r *RegisterCredentialRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.CredentialName,
		),
		validation.Field(&r.Value,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.ExpiresInSeconds,
			validation.Min(int64(0)),
		),
		validation.Field(&r.RotationIntervalSeconds,
			validation.Min(int64(0)),
		),
	)
}

// VerifyCredentialRequest contains the candidate value to verify.
type VerifyCredentialRequest struct {
	Value string `json:"value"`
}

// Validate checks if the verify credential request is valid.
func (r *VerifyCredentialRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Value,
			validation.Required,
		),
	)
}

// RotateCredentialRequest contains the replacement value for rotation.
type RotateCredentialRequest struct {
	Value string `json:"value"`
}

// Validate checks if the rotate credential request is valid.
func (r *RotateCredentialRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Value,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// RevokeCredentialRequest contains the optional revocation reason.
type RevokeCredentialRequest struct {
	Reason string `json:"reason"`
}

// Validate checks if the revoke credential request is valid.
func (r *RevokeCredentialRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason,
			validation.Length(0, 500),
		),
	)
}

// ReportLeakRequest contains the parameters for reporting a leaked credential.
type ReportLeakRequest struct {
	Source   string `json:"source"`
	Evidence string `json:"evidence"`
	Severity string `json:"severity"`
}

// Validate checks if the report leak request is valid.
func (r *ReportLeakRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Source,
			validation.Required,
			validation.In(
				string(credentialDomain.LeakSourceLog),
				string(credentialDomain.LeakSourceGitHistory),
				string(credentialDomain.LeakSourceEnvironment),
				string(credentialDomain.LeakSourceMemoryDump),
			),
		),
		validation.Field(&r.Evidence,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.Severity,
			validation.Required,
			validation.In(
				string(credentialDomain.SeverityLow),
				string(credentialDomain.SeverityMedium),
				string(credentialDomain.SeverityHigh),
				string(credentialDomain.SeverityCritical),
			),
		),
	)
}

// ScanRequest contains the parameters for a leak scan run.
type ScanRequest struct {
	LogFiles    []string `json:"log_files"`
	Environment bool     `json:"environment"`
	GitRepoPath string   `json:"git_repo_path"`
}

// Validate checks if the scan request is valid.
func (r *ScanRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.LogFiles,
			validation.Each(customValidation.NotBlank),
		),
	)
}
