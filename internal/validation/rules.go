// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/agentsec/secrets/internal/errors"
)

// credentialNameRegex bounds credential names to a shape that maps cleanly
// onto environment variable keys.
var credentialNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,127}$`)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// CredentialName validates a credential name: alphanumeric start, then
// letters, digits, dots, underscores or hyphens, at most 128 characters.
var CredentialName = validation.NewStringRuleWithError(
	func(s string) bool {
		return credentialNameRegex.MatchString(s)
	},
	validation.NewError("validation_credential_name", "must be a valid credential name"),
)

// NoWhitespace validates that a string has no leading or trailing whitespace.
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)
