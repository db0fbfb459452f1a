package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the session monitoring library
type Metrics struct {
	// Session Lifecycle Metrics
	SessionsCreated    metric.Int64Counter
	SessionsTerminated metric.Int64Counter
	SessionsExpired    metric.Int64Counter
	HeartbeatsTotal    metric.Int64Counter

	// Monitor Metrics
	SweepsTotal   metric.Int64Counter
	SweepDuration metric.Float64Histogram

	// Security Metrics
	RateLimitAllowed     metric.Int64Counter
	RateLimitBlocked     metric.Int64Counter
	RateLimitTrackedKeys metric.Int64ObservableGauge
	AuditEventsTotal     metric.Int64Counter

	// Storage Metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageSessionsCount     metric.Int64ObservableGauge
	StorageEventsCount       metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	sessionMeter := inst.Meter("session")
	monitorMeter := inst.Meter("monitor")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	var err error

	// Session Lifecycle Metrics
	m.SessionsCreated, err = sessionMeter.Int64Counter(
		"session.created",
		metric.WithDescription("Number of sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session.created counter: %w", err)
	}

	m.SessionsTerminated, err = sessionMeter.Int64Counter(
		"session.terminated",
		metric.WithDescription("Number of sessions terminated, by reason"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session.terminated counter: %w", err)
	}

	m.SessionsExpired, err = sessionMeter.Int64Counter(
		"session.expired",
		metric.WithDescription("Number of sessions deactivated by expiry cleanup"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session.expired counter: %w", err)
	}

	m.HeartbeatsTotal, err = sessionMeter.Int64Counter(
		"session.heartbeats",
		metric.WithDescription("Number of activity heartbeats persisted"),
		metric.WithUnit("{heartbeat}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session.heartbeats counter: %w", err)
	}

	// Monitor Metrics
	m.SweepsTotal, err = monitorMeter.Int64Counter(
		"monitor.sweeps",
		metric.WithDescription("Number of monitor sweeps executed, by kind and result"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor.sweeps counter: %w", err)
	}

	m.SweepDuration, err = monitorMeter.Float64Histogram(
		"monitor.sweep.duration",
		metric.WithDescription("Monitor sweep duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor.sweep.duration histogram: %w", err)
	}

	// Security Metrics
	m.RateLimitAllowed, err = securityMeter.Int64Counter(
		"security.ratelimit.allowed",
		metric.WithDescription("Number of attempts allowed by the rate limiter"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.ratelimit.allowed counter: %w", err)
	}

	m.RateLimitBlocked, err = securityMeter.Int64Counter(
		"security.ratelimit.blocked",
		metric.WithDescription("Number of attempts refused by the rate limiter"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.ratelimit.blocked counter: %w", err)
	}

	m.RateLimitTrackedKeys, err = securityMeter.Int64ObservableGauge(
		"security.ratelimit.tracked_keys",
		metric.WithDescription("Number of keys currently tracked by the rate limiter"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.ratelimit.tracked_keys gauge: %w", err)
	}

	m.AuditEventsTotal, err = securityMeter.Int64Counter(
		"security.audit.events",
		metric.WithDescription("Number of security events logged, by kind and severity"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security.audit.events counter: %w", err)
	}

	// Storage Metrics
	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"storage.operation.total",
		metric.WithDescription("Number of storage operations, by operation and result"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.StorageSessionsCount, err = storageMeter.Int64ObservableGauge(
		"storage.sessions.count",
		metric.WithDescription("Number of session records currently stored"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.sessions.count gauge: %w", err)
	}

	m.StorageEventsCount, err = storageMeter.Int64ObservableGauge(
		"storage.events.count",
		metric.WithDescription("Number of security events currently stored"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.events.count gauge: %w", err)
	}

	return m, nil
}

// RecordSessionCreated records a session creation
func (m *Metrics) RecordSessionCreated(ctx context.Context) {
	m.SessionsCreated.Add(ctx, 1)
}

// RecordSessionTerminated records a session termination with its reason
// (user, others, idle_timeout)
func (m *Metrics) RecordSessionTerminated(ctx context.Context, reason string) {
	m.SessionsTerminated.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrTerminationReason, reason)))
}

// RecordSessionsExpired records sessions deactivated by expiry cleanup
func (m *Metrics) RecordSessionsExpired(ctx context.Context, count int) {
	if count > 0 {
		m.SessionsExpired.Add(ctx, int64(count))
	}
}

// RecordHeartbeat records a persisted activity heartbeat
func (m *Metrics) RecordHeartbeat(ctx context.Context) {
	m.HeartbeatsTotal.Add(ctx, 1)
}

// RecordSweep records a completed monitor sweep
func (m *Metrics) RecordSweep(ctx context.Context, kind string, durationMs float64, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrSweepKind, kind),
		attribute.String(AttrSweepResult, result),
	)
	m.SweepsTotal.Add(ctx, 1, attrs)
	m.SweepDuration.Record(ctx, durationMs,
		metric.WithAttributes(attribute.String(AttrSweepKind, kind)))
}

// RecordRateLimitDecision records a rate limiter decision
func (m *Metrics) RecordRateLimitDecision(ctx context.Context, allowed bool) {
	if allowed {
		m.RateLimitAllowed.Add(ctx, 1)
		return
	}
	m.RateLimitBlocked.Add(ctx, 1)
}

// RecordAuditEvent records a logged security event
func (m *Metrics) RecordAuditEvent(ctx context.Context, kind, severity string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAuditEventKind, kind),
		attribute.String(AttrAuditSeverity, severity),
	))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageResult, result),
	)
	m.StorageOperationTotal.Add(ctx, 1, attrs)
	m.StorageOperationDuration.Record(ctx, durationMs,
		metric.WithAttributes(attribute.String(AttrStorageOperation, operation)))
}
