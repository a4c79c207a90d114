package http

import (
	"bytes"
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
	"github.com/agentsec/secrets/internal/credential/http/dto"
	credentialService "github.com/agentsec/secrets/internal/credential/service"
	credentialUseCase "github.com/agentsec/secrets/internal/credential/usecase"
	"github.com/agentsec/secrets/internal/sensitive"
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

type handlerFixture struct {
	registry credentialUseCase.CredentialRegistry
	router   *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auditLogger, err := audit.NewLogger(&memoryAuditStore{}, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	registry := credentialUseCase.NewCredentialRegistry(credentialService.NewDigestHasher(), auditLogger)
	scanner := credentialUseCase.NewLeakScanner(registry, sensitive.NewPolicy())
	handler := NewCredentialHandler(registry, scanner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	router := gin.New()
	router.POST("/v1/credentials", handler.RegisterHandler)
	router.GET("/v1/credentials", handler.ListHandler)
	router.GET("/v1/credentials/:id/status", handler.StatusHandler)
	router.POST("/v1/credentials/:id/verify", handler.VerifyHandler)
	router.POST("/v1/credentials/:id/rotate", handler.RotateHandler)
	router.POST("/v1/credentials/:id/revoke", handler.RevokeHandler)
	router.POST("/v1/credentials/:id/leaks", handler.ReportLeakHandler)
	router.POST("/v1/credentials/:id/reinstate", handler.ReinstateHandler)
	router.GET("/v1/leaks", handler.LeaksHandler)

	return &handlerFixture{registry: registry, router: router}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	return w
}

func (f *handlerFixture) register(t *testing.T, name, value string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/credentials", dto.RegisterCredentialRequest{
		Name:  name,
		Value: value,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.RegisterCredentialResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestRegisterHandler(t *testing.T) {
	fixture := newHandlerFixture(t)

	w := fixture.do(t, http.MethodPost, "/v1/credentials", dto.RegisterCredentialRequest{
		Name:  "github-token",
		Value: "ghp_secret",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.RegisterCredentialResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "github-token", resp.Name)
	assert.Equal(t, "active", resp.Status)
}

func TestRegisterHandlerValidation(t *testing.T) {
	fixture := newHandlerFixture(t)

	t.Run("missing value", func(t *testing.T) {
		w := fixture.do(t, http.MethodPost, "/v1/credentials", dto.RegisterCredentialRequest{
			Name: "github-token",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("bad name", func(t *testing.T) {
		w := fixture.do(t, http.MethodPost, "/v1/credentials", dto.RegisterCredentialRequest{
			Name:  "has spaces",
			Value: "secret",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/credentials", bytes.NewReader([]byte("{")))
		fixture.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestVerifyHandler(t *testing.T) {
	fixture := newHandlerFixture(t)
	id := fixture.register(t, "api-key", "sk-12345")

	w := fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/verify", dto.VerifyCredentialRequest{Value: "sk-12345"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.VerifyCredentialResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)

	w = fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/verify", dto.VerifyCredentialRequest{Value: "wrong"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)

	// Unknown ids verify as false, not 404
	w = fixture.do(t, http.MethodPost, "/v1/credentials/unknown/verify", dto.VerifyCredentialRequest{Value: "x"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
}

func TestStatusHandler(t *testing.T) {
	fixture := newHandlerFixture(t)
	id := fixture.register(t, "api-key", "sk-12345")

	w := fixture.do(t, http.MethodGet, "/v1/credentials/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.CredentialStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp.Status)

	w = fixture.do(t, http.MethodGet, "/v1/credentials/unknown/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRotateHandler(t *testing.T) {
	fixture := newHandlerFixture(t)
	id := fixture.register(t, "api-key", "sk-old")

	w := fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/rotate", dto.RotateCredentialRequest{Value: "sk-new"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.False(t, fixture.registry.Verify(context.Background(), id, []byte("sk-old")))
	assert.True(t, fixture.registry.Verify(context.Background(), id, []byte("sk-new")))
}

func TestRevokeHandler(t *testing.T) {
	fixture := newHandlerFixture(t)
	id := fixture.register(t, "api-key", "sk-12345")

	w := fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/revoke", dto.RevokeCredentialRequest{Reason: "offboarding"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = fixture.do(t, http.MethodGet, "/v1/credentials/"+id+"/status", nil)
	var resp dto.CredentialStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "revoked", resp.Status)

	w = fixture.do(t, http.MethodPost, "/v1/credentials/unknown/revoke", dto.RevokeCredentialRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportLeakHandler(t *testing.T) {
	fixture := newHandlerFixture(t)
	id := fixture.register(t, "api-key", "sk-12345")

	w := fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/leaks", dto.ReportLeakRequest{
		Source:   "log",
		Evidence: "app.log:42",
		Severity: "high",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var leak dto.LeakResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &leak))
	assert.Equal(t, id, leak.CredentialID)
	assert.Equal(t, "log", leak.Source)

	// The credential is now compromised; rotation is refused
	w = fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/rotate", dto.RotateCredentialRequest{Value: "sk-new"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Reinstate moves it back to revoked, then rotation succeeds
	w = fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/reinstate", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/rotate", dto.RotateCredentialRequest{Value: "sk-new"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The leak remains on record
	w = fixture.do(t, http.MethodGet, "/v1/leaks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var leaks dto.ListLeaksResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &leaks))
	assert.Len(t, leaks.Leaks, 1)
}

func TestReportLeakHandlerValidation(t *testing.T) {
	fixture := newHandlerFixture(t)
	id := fixture.register(t, "api-key", "sk-12345")

	w := fixture.do(t, http.MethodPost, "/v1/credentials/"+id+"/leaks", dto.ReportLeakRequest{
		Source:   "carrier-pigeon",
		Evidence: "x",
		Severity: "high",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListHandler(t *testing.T) {
	fixture := newHandlerFixture(t)
	fixture.register(t, "first", "v1")
	fixture.register(t, "second", "v2")

	w := fixture.do(t, http.MethodGet, "/v1/credentials", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListCredentialsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Credentials, 2)

	// Hashes never appear in the payload
	assert.NotContains(t, w.Body.String(), "hash")
	assert.NotContains(t, w.Body.String(), "v1")
}
