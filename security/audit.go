// Package security provides the client-side security building blocks for
// session monitoring: rate limiting, input validation, audit logging,
// device fingerprinting, and credential hashing.
package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// Event represents a security audit event.
type Event struct {
	// Kind identifies what happened, e.g. EventLogin or EventSuspiciousActivity
	Kind string

	// Severity is derived from Kind at logging time via ClassifySeverity
	Severity Severity

	// Description is a short human-readable summary
	Description string

	// OwnerID is the account the event concerns (stored unhashed; hashed
	// when emitted to the structured log)
	OwnerID string

	// IPAddress is the client IP associated with the event, if known
	IPAddress string

	// Metadata carries event-specific details
	Metadata map[string]any

	// Timestamp is stamped by the Auditor when the event is logged
	Timestamp time.Time
}

// EventSink receives security events for persistence.
// storage.AuditStore satisfies this interface.
type EventSink interface {
	AppendEvent(ctx context.Context, event *Event) error
}

// Auditor handles security event logging with PII protection.
// Events are classified, stamped, emitted to the structured log with
// hashed owner IDs, and appended to the optional sink. The sink append
// is dispatched in a goroutine: callers never wait on audit persistence,
// and sink failures are logged and swallowed.
type Auditor struct {
	logger   *slog.Logger
	sink     EventSink
	enabled  bool
	observer func(kind string, severity Severity)

	// pending tracks dispatched sink appends so Flush can drain them
	pending sync.WaitGroup
}

// NewAuditor creates a new security auditor. The sink may be nil, in
// which case events are only written to the structured log.
func NewAuditor(logger *slog.Logger, sink EventSink, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		sink:    sink,
		enabled: enabled,
	}
}

// SetObserver registers a callback invoked once per logged event,
// used to feed metrics without coupling this package to a metrics stack.
func (a *Auditor) SetObserver(fn func(kind string, severity Severity)) {
	a.observer = fn
}

// LogEvent stamps and records a security event. When the event carries
// no explicit Severity it is derived from the kind via ClassifySeverity;
// the Timestamp field is always overwritten.
func (a *Auditor) LogEvent(ctx context.Context, event Event) {
	if !a.enabled {
		return
	}

	if event.Severity == "" {
		event.Severity = ClassifySeverity(event.Kind)
	}
	event.Timestamp = time.Now().UTC()

	a.logger.Info("security_audit",
		"event_kind", event.Kind,
		"severity", string(event.Severity),
		"description", event.Description,
		"owner_id_hash", HashForLogging(event.OwnerID),
		"ip_address", RedactIP(event.IPAddress),
		"metadata", event.Metadata,
		"timestamp", event.Timestamp,
	)

	if a.observer != nil {
		a.observer(event.Kind, event.Severity)
	}

	if a.sink != nil {
		// Fire-and-forget: the append runs detached on a background
		// context so it survives caller cancellation, and the caller
		// never waits on persistence latency.
		a.pending.Add(1)
		go func(ev Event) {
			defer a.pending.Done()
			if err := a.sink.AppendEvent(context.Background(), &ev); err != nil {
				a.logger.Warn("Failed to persist security event",
					"event_kind", ev.Kind,
					"error", err)
			}
		}(event)
	}
}

// Flush blocks until every dispatched sink append has completed. Call
// it during shutdown so in-flight audit writes are not abandoned.
func (a *Auditor) Flush() {
	a.pending.Wait()
}

// LogLogin records a successful sign-in
func (a *Auditor) LogLogin(ctx context.Context, ownerID, ipAddress, sessionID string) {
	a.LogEvent(ctx, Event{
		Kind:        EventLogin,
		Description: "principal signed in",
		OwnerID:     ownerID,
		IPAddress:   ipAddress,
		Metadata: map[string]any{
			"session_id": sessionID,
		},
	})
}

// LogLoginFailed records a failed authentication attempt
func (a *Auditor) LogLoginFailed(ctx context.Context, ownerID, ipAddress, reason string) {
	a.LogEvent(ctx, Event{
		Kind:        EventLoginFailed,
		Description: "authentication attempt failed",
		OwnerID:     ownerID,
		IPAddress:   ipAddress,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}

// LogLogout records a session ending. Forced is true when the session was
// terminated by policy (idle timeout, remote revocation) rather than by
// the user.
func (a *Auditor) LogLogout(ctx context.Context, ownerID, sessionID string, forced bool) {
	a.LogEvent(ctx, Event{
		Kind:        EventLogout,
		Description: "session ended",
		OwnerID:     ownerID,
		Metadata: map[string]any{
			"session_id": sessionID,
			"forced":     forced,
		},
	})
}

// LogRateLimitExceeded records a refused attempt
func (a *Auditor) LogRateLimitExceeded(ctx context.Context, key, ownerID string) {
	a.LogEvent(ctx, Event{
		Kind:        EventRateLimitExceeded,
		Severity:    SeverityMedium,
		Description: "rate limit refused an attempt",
		OwnerID:     ownerID,
		Metadata: map[string]any{
			"key_hash": HashForLogging(key),
		},
	})
}

// HashForLogging creates a truncated SHA256 hash of sensitive data so it
// can be correlated in logs without exposing the value itself.
func HashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
