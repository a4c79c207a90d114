package dto

import (
	"time"

	"github.com/agentsec/secrets/internal/secretstore"
)

// SecretResponse describes a stored secret.
type SecretResponse struct {
	Name      string            `json:"name"`
	Value     string            `json:"value"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ListSecretsResponse wraps the secret name list.
type ListSecretsResponse struct {
	Names []string `json:"names"`
}

// MapEntryToResponse maps a backend entry to its response representation.
func MapEntryToResponse(entry *secretstore.Entry) SecretResponse {
	return SecretResponse{
		Name:      entry.Name,
		Value:     entry.Value,
		Version:   entry.Version,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
		Metadata:  entry.Metadata,
	}
}
