// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/agentsec/secrets/internal/validation"
)

// SetSecretRequest contains the parameters for storing a secret value.
type SetSecretRequest struct {
	Value    string            `json:"value"`
	Metadata map[string]string `json:"metadata"`
}

// Validate checks if the set secret request is valid.
func (r *SetSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Value,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}
