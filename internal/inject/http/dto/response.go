package dto

import (
	"time"

	injectDomain "github.com/agentsec/secrets/internal/inject/domain"
)

// CreateCredentialResponse is returned after minting a temporary credential.
// The plaintext value is never echoed back.
type CreateCredentialResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Scope         string    `json:"scope"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RemainingUses int        `json:"remaining_uses"`
	EnvKey        string     `json:"env_key"`
}

// MapCredentialToResponse maps a temporary credential to its response
// representation. envKey is the key an injection would use by default.
func MapCredentialToResponse(cred *injectDomain.TemporaryCredential, envKey string) CreateCredentialResponse {
	return CreateCredentialResponse{
		ID:            cred.ID,
		Name:          cred.Name,
		Scope:         string(cred.Scope),
		CreatedAt:     cred.CreatedAt,
		ExpiresAt:     cred.ExpiresAt,
		RemainingUses: cred.RemainingUses(),
		EnvKey:        envKey,
	}
}

// InjectResponse reports the outcome of an injection.
type InjectResponse struct {
	Success        bool   `json:"success"`
	CredentialID   string `json:"credential_id"`
	EnvironmentKey string `json:"environment_key,omitempty"`
	InjectedValue  string `json:"injected_value,omitempty"`
	Error          string `json:"error,omitempty"`
}

// MapResultToResponse maps an injection result to its response representation.
// The injected value is only carried for request scope, where no environment
// variable is set and the caller has no other way to receive it.
func MapResultToResponse(result injectDomain.InjectionResult, scope injectDomain.Scope) InjectResponse {
	resp := InjectResponse{
		Success:        result.Success,
		CredentialID:   result.CredentialID,
		EnvironmentKey: result.EnvironmentKey,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if result.Success && scope == injectDomain.ScopeRequest {
		resp.InjectedValue = result.InjectedValue
	}
	return resp
}

// CleanupCountResponse reports how many bindings a cleanup pass removed.
type CleanupCountResponse struct {
	Cleaned int `json:"cleaned"`
}

// CleanupResponse reports whether a single binding was cleaned up.
type CleanupResponse struct {
	Cleaned bool `json:"cleaned"`
}
