package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: Never put raw credentials, unredacted IP addresses,
// or unhashed owner IDs in traces or metrics. Traces are persisted for
// extended periods, visible to wider audiences than production systems,
// and subject to compliance requirements. Only metadata like hashed
// identifiers, fingerprint prefixes, counts, and results belong here.
const (
	// Session attributes
	AttrSessionID          = "session.id"
	AttrOwnerIDHash        = "session.owner_id_hash" // hashed, never the raw owner ID
	AttrFingerprintPrefix  = "session.fingerprint_prefix"
	AttrTerminationReason  = "session.termination_reason"
	AttrActiveSessionCount = "session.active_count"

	// Monitor attributes
	AttrSweepKind   = "monitor.sweep.kind"
	AttrSweepResult = "monitor.sweep.result"

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageResult    = "storage.result"
	AttrStorageType      = "storage.type"

	// Security attributes
	AttrAuditEventKind = "security.audit.event_kind"
	AttrAuditSeverity  = "security.audit.severity"
	AttrRateLimitKey   = "security.ratelimit.key_hash" // hashed, never the raw key
	AttrClientIP       = "security.client_ip"          // redacted form only
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddSessionAttributes adds session attributes to a span (nil-safe).
// The owner ID must already be hashed by the caller.
func AddSessionAttributes(span trace.Span, sessionID, ownerIDHash string) {
	if sessionID != "" {
		SetSpanAttributes(span, attribute.String(AttrSessionID, sessionID))
	}
	if ownerIDHash != "" {
		SetSpanAttributes(span, attribute.String(AttrOwnerIDHash, ownerIDHash))
	}
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, storageType string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageType, storageType),
	)
}

// AddSweepAttributes adds monitor sweep attributes to a span (nil-safe)
func AddSweepAttributes(span trace.Span, kind string) {
	SetSpanAttributes(span, attribute.String(AttrSweepKind, kind))
}
