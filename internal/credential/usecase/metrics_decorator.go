package usecase

import (
	"context"
	"time"

	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	"github.com/agentsec/secrets/internal/metrics"
)

// registryWithMetrics decorates CredentialRegistry with metrics
// instrumentation.
type registryWithMetrics struct {
	next    CredentialRegistry
	metrics metrics.BusinessMetrics
}

// NewCredentialRegistryWithMetrics wraps a CredentialRegistry with metrics
// recording.
func NewCredentialRegistryWithMetrics(registry CredentialRegistry, m metrics.BusinessMetrics) CredentialRegistry {
	return &registryWithMetrics{
		next:    registry,
		metrics: m,
	}
}

func (r *registryWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, "credential", operation, status)
	r.metrics.RecordDuration(ctx, "credential", operation, time.Since(start), status)
}

func (r *registryWithMetrics) Register(ctx context.Context, name string, value []byte, opts RegisterOptions) (string, error) {
	start := time.Now()
	id, err := r.next.Register(ctx, name, value, opts)
	r.record(ctx, "register", start, err)
	return id, err
}

func (r *registryWithMetrics) Verify(ctx context.Context, id string, candidate []byte) bool {
	start := time.Now()
	ok := r.next.Verify(ctx, id, candidate)

	status := "success"
	if !ok {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, "credential", "verify", status)
	r.metrics.RecordDuration(ctx, "credential", "verify", time.Since(start), status)
	return ok
}

func (r *registryWithMetrics) Rotate(ctx context.Context, id string, newValue []byte) error {
	start := time.Now()
	err := r.next.Rotate(ctx, id, newValue)
	r.record(ctx, "rotate", start, err)
	return err
}

func (r *registryWithMetrics) Revoke(ctx context.Context, id, reason string) error {
	start := time.Now()
	err := r.next.Revoke(ctx, id, reason)
	r.record(ctx, "revoke", start, err)
	return err
}

func (r *registryWithMetrics) ReportLeak(ctx context.Context, id string, source credentialDomain.LeakSource, evidence string, severity credentialDomain.Severity) (*credentialDomain.Leak, error) {
	start := time.Now()
	leak, err := r.next.ReportLeak(ctx, id, source, evidence, severity)
	r.record(ctx, "report_leak", start, err)
	return leak, err
}

func (r *registryWithMetrics) Reinstate(ctx context.Context, id string) error {
	start := time.Now()
	err := r.next.Reinstate(ctx, id)
	r.record(ctx, "reinstate", start, err)
	return err
}

func (r *registryWithMetrics) CheckRotationNeeded(ctx context.Context) []string {
	start := time.Now()
	due := r.next.CheckRotationNeeded(ctx)
	r.record(ctx, "check_rotation", start, nil)
	return due
}

func (r *registryWithMetrics) CleanupExpired(ctx context.Context) int {
	start := time.Now()
	count := r.next.CleanupExpired(ctx)
	r.record(ctx, "cleanup_expired", start, nil)
	return count
}

func (r *registryWithMetrics) GetStatus(ctx context.Context, id string) (credentialDomain.Status, error) {
	start := time.Now()
	status, err := r.next.GetStatus(ctx, id)
	r.record(ctx, "get_status", start, err)
	return status, err
}

func (r *registryWithMetrics) List(ctx context.Context) []credentialDomain.Record {
	return r.next.List(ctx)
}

func (r *registryWithMetrics) Leaks(ctx context.Context) []credentialDomain.Leak {
	return r.next.Leaks(ctx)
}

func (r *registryWithMetrics) OnLeak(fn func(credentialDomain.Leak)) {
	r.next.OnLeak(fn)
}
