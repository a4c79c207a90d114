package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
	apperrors "github.com/agentsec/secrets/internal/errors"
)

// MySQLStore implements append-only audit event persistence for MySQL.
// Identical layout to the PostgreSQL store with MySQL placeholder syntax.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a MySQL-backed audit store.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// Append inserts one row per event. The table has no update path.
func (m *MySQLStore) Append(ctx context.Context, events []auditDomain.Event) error {
	query := `INSERT INTO audit_events (event_type, resource, created_at, payload)
			  VALUES (?, ?, ?, ?)`

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal audit event")
		}
		_, err = m.db.ExecContext(ctx, query,
			string(event.EventType),
			event.Resource,
			event.Timestamp,
			payload,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to append audit event")
		}
	}
	return nil
}

// Scan iterates events in append (id) order.
func (m *MySQLStore) Scan(ctx context.Context, fn func(auditDomain.Event) bool) error {
	query := `SELECT payload FROM audit_events ORDER BY id ASC`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return apperrors.Wrap(err, "failed to scan audit events")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return apperrors.Wrap(err, "failed to scan audit event row")
		}

		var event auditDomain.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		if !fn(event) {
			return nil
		}
	}
	return apperrors.Wrap(rows.Err(), "failed to iterate audit events")
}
