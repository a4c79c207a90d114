// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	injectDomain "github.com/agentsec/secrets/internal/inject/domain"
	customValidation "github.com/agentsec/secrets/internal/validation"
)

// CreateCredentialRequest contains the parameters for minting a temporary credential.
type CreateCredentialRequest struct {
	Name       string            `json:"name"`
	Value      string            `json:"value"`
	TTLSeconds int64             `json:"ttl_seconds"`
	MaxUses    int               `json:"max_uses"`
	Scope      string            `json:"scope"`
	Metadata   map[string]string `json:"metadata"`
}

// Validate checks if the create credential request is valid.
func (r *CreateCredentialRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.CredentialName,
		),
		validation.Field(&r.Value,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.TTLSeconds,
			validation.Min(int64(0)),
		),
		validation.Field(&r.Scope,
			validation.In(
				string(injectDomain.ScopeProcess),
				string(injectDomain.ScopeWorker),
				string(injectDomain.ScopeRequest),
			),
		),
	)
}

// InjectRequest contains the parameters for injecting a temporary credential.
type InjectRequest struct {
	EnvKey string `json:"env_key"`
	Owner  string `json:"owner"`
}

// Validate checks if the inject request is valid.
func (r *InjectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EnvKey,
			customValidation.NoWhitespace,
		),
		validation.Field(&r.Owner,
			customValidation.NoWhitespace,
		),
	)
}

// CleanupRequest identifies the environment key to clean up.
type CleanupRequest struct {
	EnvKey string `json:"env_key"`
}

// Validate checks if the cleanup request is valid.
func (r *CleanupRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EnvKey,
			validation.Required,
			customValidation.NoWhitespace,
		),
	)
}

// CleanupWorkerRequest identifies the worker whose bindings are cleaned up.
type CleanupWorkerRequest struct {
	Owner string `json:"owner"`
}

// Validate checks if the cleanup worker request is valid.
func (r *CleanupWorkerRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Owner,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}
