package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentsec/secrets/internal/audit"
	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
)

type memoryAuditStore struct {
	mu     sync.Mutex
	events []auditDomain.Event
}

func (s *memoryAuditStore) Append(ctx context.Context, events []auditDomain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *memoryAuditStore) Scan(ctx context.Context, fn func(auditDomain.Event) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if !fn(event) {
			return nil
		}
	}
	return nil
}

type auditFixture struct {
	store       *memoryAuditStore
	auditLogger *audit.Logger
	router      *gin.Engine
}

func newAuditFixture(t *testing.T) *auditFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &memoryAuditStore{}
	auditLogger, err := audit.NewLogger(store, []byte("0123456789abcdef0123456789abcdef"), audit.WithBufferSize(1))
	require.NoError(t, err)

	handler := NewAuditEventHandler(auditLogger, slog.New(slog.NewTextHandler(io.Discard, nil)))

	router := gin.New()
	router.GET("/v1/audit-events", handler.ListHandler)
	router.POST("/v1/audit-events/flush", handler.FlushHandler)

	return &auditFixture{store: store, auditLogger: auditLogger, router: router}
}

func (f *auditFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	f.router.ServeHTTP(w, req)
	return w
}

func TestListHandler(t *testing.T) {
	fixture := newAuditFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.auditLogger.Log(ctx, auditDomain.EventCredentialCreated, audit.Entry{
		Resource: "cred-1",
		Result:   auditDomain.ResultSuccess,
	}))
	require.NoError(t, fixture.auditLogger.Log(ctx, auditDomain.EventCredentialRevoked, audit.Entry{
		Resource: "cred-1",
		Result:   auditDomain.ResultSuccess,
	}))

	w := fixture.get(t, "/v1/audit-events")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []struct {
			EventType string `json:"event_type"`
			Resource  string `json:"resource"`
		} `json:"events"`
		Scanned          int `json:"scanned"`
		InvalidSignature int `json:"invalid_signature"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "credential_created", resp.Events[0].EventType)
	assert.Equal(t, 2, resp.Scanned)
	assert.Equal(t, 0, resp.InvalidSignature)

	// Signatures are internal to the log
	assert.NotContains(t, w.Body.String(), "signature\":\"")
}

func TestListHandlerFilters(t *testing.T) {
	fixture := newAuditFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.auditLogger.Log(ctx, auditDomain.EventCredentialCreated, audit.Entry{
		Resource: "cred-1",
		Result:   auditDomain.ResultSuccess,
	}))
	require.NoError(t, fixture.auditLogger.Log(ctx, auditDomain.EventSecurityViolation, audit.Entry{
		Resource: "cred-2",
		Result:   auditDomain.ResultDenied,
	}))

	w := fixture.get(t, "/v1/audit-events?event_type=security_violation")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []struct {
			EventType string `json:"event_type"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "security_violation", resp.Events[0].EventType)
}

func TestListHandlerRejectsBadTimestamps(t *testing.T) {
	fixture := newAuditFixture(t)

	w := fixture.get(t, "/v1/audit-events?from=yesterday")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = fixture.get(t, "/v1/audit-events?from=2026-02-14T00:00:00Z&to=2026-02-01T00:00:00Z")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = fixture.get(t, "/v1/audit-events?limit=zero")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListHandlerCountsTamperedEvents(t *testing.T) {
	fixture := newAuditFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.auditLogger.Log(ctx, auditDomain.EventCredentialCreated, audit.Entry{
		Resource: "cred-1",
		Result:   auditDomain.ResultSuccess,
	}))

	// Tamper with the stored record
	fixture.store.mu.Lock()
	fixture.store.events[0].Resource = "cred-other"
	fixture.store.mu.Unlock()

	w := fixture.get(t, "/v1/audit-events")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events           []json.RawMessage `json:"events"`
		InvalidSignature int               `json:"invalid_signature"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Events)
	assert.Equal(t, 1, resp.InvalidSignature)
}

func TestFlushHandler(t *testing.T) {
	fixture := newAuditFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audit-events/flush", nil)
	fixture.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
