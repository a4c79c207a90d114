// Package audit provides the buffered, signed, append-only audit logger and
// the query path that re-verifies every persisted event.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os/user"
	"sync"
	"time"

	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
	"github.com/agentsec/secrets/internal/sensitive"
)

// DefaultBufferSize is the auto-flush threshold when none is configured.
const DefaultBufferSize = 100

// Store persists signed audit events. Implementations are append-only:
// Append never rewrites earlier records, and Scan yields records in append
// order.
type Store interface {
	// Append writes the events to the backing store.
	Append(ctx context.Context, events []auditDomain.Event) error

	// Scan iterates persisted events in order, calling fn for each.
	// Iteration stops when fn returns false.
	Scan(ctx context.Context, fn func(auditDomain.Event) bool) error
}

// Entry carries the caller-supplied fields of one audit record.
type Entry struct {
	Resource  string
	Action    string
	Result    auditDomain.Result
	Details   map[string]any
	Actor     string
	IPAddress string
	UserAgent string
	SessionID string
}

// Filter selects events during Query. Zero values match everything.
type Filter struct {
	EventType auditDomain.EventType
	Resource  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// QueryReport summarizes signature verification during a Query. Events with
// invalid signatures are skipped, not returned, and counted here so a caller
// can distinguish "no matches" from "matches I cannot trust".
type QueryReport struct {
	Scanned          int
	InvalidSignature int
}

// Option configures a Logger.
type Option func(*Logger)

// WithBufferSize sets the auto-flush threshold.
func WithBufferSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.bufferSize = n
		}
	}
}

// WithActor sets the default actor recorded when an entry names none.
func WithActor(actor string) Option {
	return func(l *Logger) { l.actor = actor }
}

// WithPolicy replaces the sensitive-field redaction policy.
func WithPolicy(policy *sensitive.Policy) Option {
	return func(l *Logger) { l.policy = policy }
}

// WithLogger sets the slog logger for operational diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.log = logger }
}

// Logger buffers signed audit events and flushes them to a Store.
//
// Redaction happens before signing, so the signature covers exactly what is
// persisted. One mutex covers the buffer and the flush: at most one flush is
// in flight, and Log calls during a flush block until it completes.
//
// Events accepted into the buffer are lost if the process dies before the
// next flush. That window is the price of batched writes; callers that
// cannot afford it should Flush after critical events.
type Logger struct {
	mu         sync.Mutex
	store      Store
	signingKey []byte
	policy     *sensitive.Policy
	buffer     []auditDomain.Event
	bufferSize int
	actor      string
	log        *slog.Logger
}

// NewLogger creates an audit logger signing with signingKey.
func NewLogger(store Store, signingKey []byte, opts ...Option) (*Logger, error) {
	if len(signingKey) == 0 {
		return nil, auditDomain.ErrInvalidSigningKey
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	l := &Logger{
		store:      store,
		signingKey: key,
		policy:     sensitive.NewPolicy(),
		bufferSize: DefaultBufferSize,
		actor:      processActor(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log redacts, signs and buffers one event. The flush triggered by a full
// buffer happens inside the same call; its store error is returned so
// acknowledged events are never silently dropped.
func (l *Logger) Log(ctx context.Context, eventType auditDomain.EventType, entry Entry) error {
	actor := entry.Actor
	if actor == "" {
		actor = l.actor
	}
	result := entry.Result
	if result == "" {
		result = auditDomain.ResultSuccess
	}

	event := auditDomain.Event{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Resource:  entry.Resource,
		Action:    entry.Action,
		Result:    result,
		Details:   l.policy.Redact(entry.Details),
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		SessionID: entry.SessionID,
	}
	if err := event.Sign(l.signingKey); err != nil {
		return fmt.Errorf("failed to sign audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)
	if len(l.buffer) >= l.bufferSize {
		return l.flushLocked(ctx)
	}
	return nil
}

// Flush writes buffered events to the store and clears the buffer.
// A no-op with an empty buffer. Store failures are surfaced and the buffer
// is kept so nothing acknowledged is lost.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked(ctx)
}

func (l *Logger) flushLocked(ctx context.Context) error {
	if len(l.buffer) == 0 {
		return nil
	}
	if err := l.store.Append(ctx, l.buffer); err != nil {
		return fmt.Errorf("failed to flush audit events: %w", err)
	}
	l.buffer = l.buffer[:0]
	return nil
}

// Buffered returns the number of events awaiting flush.
func (l *Logger) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// Query scans persisted events in order, verifies each signature, and
// returns up to filter.Limit events matching the remaining filters. Events
// failing verification are skipped and counted in the report rather than
// aborting the query.
func (l *Logger) Query(ctx context.Context, filter Filter) ([]auditDomain.Event, QueryReport, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		results []auditDomain.Event
		report  QueryReport
	)

	err := l.store.Scan(ctx, func(event auditDomain.Event) bool {
		report.Scanned++

		if !event.Verify(l.signingKey) {
			report.InvalidSignature++
			l.log.Warn("audit event failed signature verification",
				slog.String("event_type", string(event.EventType)),
				slog.Time("timestamp", event.Timestamp),
			)
			return true
		}

		if filter.EventType != "" && event.EventType != filter.EventType {
			return true
		}
		if filter.Resource != "" && event.Resource != filter.Resource {
			return true
		}
		if !filter.StartTime.IsZero() && event.Timestamp.Before(filter.StartTime) {
			return true
		}
		if !filter.EndTime.IsZero() && event.Timestamp.After(filter.EndTime) {
			return true
		}

		results = append(results, event)
		return len(results) < limit
	})
	if err != nil {
		return nil, report, fmt.Errorf("failed to query audit events: %w", err)
	}
	return results, report, nil
}

// processActor resolves the OS user running the process, falling back to
// "system" when unresolvable.
func processActor() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "system"
	}
	return u.Username
}
