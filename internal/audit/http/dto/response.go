// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
)

// EventResponse describes a verified audit event. Signatures are internal
// to the log and not exposed.
type EventResponse struct {
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Action    string         `json:"action,omitempty"`
	Result    string         `json:"result"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// QueryResponse wraps a list of verified events together with the scan
// summary. InvalidSignature distinguishes "no matches" from "matches that
// failed verification".
type QueryResponse struct {
	Events           []EventResponse `json:"events"`
	Scanned          int             `json:"scanned"`
	InvalidSignature int             `json:"invalid_signature"`
}

// MapEventToResponse maps a domain event to its response representation.
func MapEventToResponse(event auditDomain.Event) EventResponse {
	return EventResponse{
		EventType: string(event.EventType),
		Timestamp: event.Timestamp,
		Actor:     event.Actor,
		Resource:  event.Resource,
		Action:    event.Action,
		Result:    string(event.Result),
		Details:   event.Details,
		IPAddress: event.IPAddress,
		SessionID: event.SessionID,
	}
}

// MapEventsToQueryResponse maps events and the scan summary to a query response.
func MapEventsToQueryResponse(events []auditDomain.Event, scanned, invalidSignature int) QueryResponse {
	out := make([]EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, MapEventToResponse(event))
	}
	return QueryResponse{
		Events:           out,
		Scanned:          scanned,
		InvalidSignature: invalidSignature,
	}
}
