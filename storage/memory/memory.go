// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and suitable for
// single-process deployments, development, and tests. A background
// cleanup goroutine prunes terminated sessions and bounds the event log.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strataplan/sessionguard/instrumentation"
	"github.com/strataplan/sessionguard/security"
	"github.com/strataplan/sessionguard/storage"
)

const (
	// DefaultMaxEvents is the maximum number of security events retained
	DefaultMaxEvents = 10000

	// DefaultInactiveRetention is how long terminated sessions are kept
	// before the cleanup goroutine prunes them
	DefaultInactiveRetention = 24 * time.Hour

	// DefaultCleanupInterval is how often the cleanup goroutine runs
	DefaultCleanupInterval = 10 * time.Minute
)

// Config holds configuration for the in-memory store.
// The zero value uses sensible defaults.
type Config struct {
	// MaxEvents bounds the retained security event log (default 10000).
	// When full, the oldest events are dropped first.
	MaxEvents int

	// InactiveRetention is how long terminated sessions are kept for
	// inspection before being pruned (default 24h)
	InactiveRetention time.Duration

	// CleanupInterval is how often the cleanup goroutine runs (default 10m)
	CleanupInterval time.Duration

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is an in-memory implementation of all storage interfaces.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*storage.SessionRecord
	events   []*security.Event // ordered oldest to newest

	logger            *slog.Logger
	maxEvents         int
	inactiveRetention time.Duration
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once

	// OpenTelemetry instrumentation (optional)
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for lock-free size gauge reads
	sessionsCountAtomic atomic.Int64
	eventsCountAtomic   atomic.Int64
}

// Compile-time interface checks
var (
	_ storage.SessionStore = (*Store)(nil)
	_ storage.AuditStore   = (*Store)(nil)
	_ storage.Store        = (*Store)(nil)
	_ security.EventSink   = (*Store)(nil)
)

// New creates an in-memory store with default settings.
func New() *Store {
	return NewWithConfig(Config{})
}

// NewWithConfig creates an in-memory store with custom configuration.
func NewWithConfig(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.InactiveRetention <= 0 {
		cfg.InactiveRetention = DefaultInactiveRetention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	s := &Store{
		sessions:          make(map[string]*storage.SessionRecord),
		logger:            logger,
		maxEvents:         cfg.MaxEvents,
		inactiveRetention: cfg.InactiveRetention,
		cleanupInterval:   cfg.CleanupInterval,
		stopCleanup:       make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst

	if inst != nil {
		s.tracer = inst.Tracer("storage")

		// Initialize atomic counters with current counts
		s.mu.RLock()
		s.sessionsCountAtomic.Store(int64(len(s.sessions)))
		s.eventsCountAtomic.Store(int64(len(s.events)))
		s.mu.RUnlock()

		// Register storage size callbacks using atomic counters (lock-free)
		if err := inst.RegisterStorageSizeCallbacks(
			s.sessionsCountAtomic.Load,
			s.eventsCountAtomic.Load,
		); err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// SaveSession implements storage.SessionStore. The record is copied, so
// callers may reuse or mutate theirs afterwards.
func (s *Store) SaveSession(ctx context.Context, rec *storage.SessionRecord) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "save_session")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_session", err, startTime)
		if span != nil {
			span.End()
		}
	}()

	if rec == nil || rec.ID == "" {
		err = fmt.Errorf("session record with ID is required")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[rec.ID]; exists {
		err = storage.ErrSessionExists
		return err
	}

	cp := *rec
	s.sessions[rec.ID] = &cp
	s.sessionsCountAtomic.Store(int64(len(s.sessions)))

	return nil
}

// GetSession implements storage.SessionStore.
func (s *Store) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "get_session")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_session", err, startTime)
		if span != nil {
			span.End()
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.sessions[id]
	if !exists {
		err = storage.ErrSessionNotFound
		return nil, err
	}

	cp := *rec
	return &cp, nil
}

// ListSessions implements storage.SessionStore. Results are ordered by
// most recent activity first.
func (s *Store) ListSessions(ctx context.Context, ownerID string, activeOnly bool) ([]*storage.SessionRecord, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "list_sessions")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "list_sessions", err, startTime)
		if span != nil {
			span.End()
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.SessionRecord
	for _, rec := range s.sessions {
		if rec.OwnerID != ownerID {
			continue
		}
		if activeOnly && !rec.IsActive {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})

	return result, nil
}

// MutateSession implements storage.SessionStore. Deactivation is
// terminal: a patch attempting to reactivate an inactive record fails.
// LastActivityAt is clamped to ExpiresAt so activity never appears to
// outlive the session.
func (s *Store) MutateSession(ctx context.Context, id string, patch storage.SessionPatch) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "mutate_session")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "mutate_session", err, startTime)
		if span != nil {
			span.End()
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[id]
	if !exists {
		err = storage.ErrSessionNotFound
		return err
	}

	if patch.IsActive != nil {
		if *patch.IsActive && !rec.IsActive {
			err = fmt.Errorf("session %s is terminated and cannot be reactivated", id)
			return err
		}
		rec.IsActive = *patch.IsActive
	}
	if patch.LastActivityAt != nil {
		at := *patch.LastActivityAt
		if at.After(rec.ExpiresAt) {
			at = rec.ExpiresAt
		}
		rec.LastActivityAt = at
	}

	return nil
}

// DeactivateExpired implements storage.SessionStore.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "deactivate_expired")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "deactivate_expired", err, startTime)
		if span != nil {
			span.End()
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.sessions {
		if rec.IsActive && rec.ExpiresAt.Before(now) {
			rec.IsActive = false
			count++
		}
	}

	if count > 0 {
		s.logger.Debug("Deactivated expired sessions", "count", count)
	}

	return count, nil
}

// AppendEvent implements storage.AuditStore. When the log is full the
// oldest events are dropped to make room.
func (s *Store) AppendEvent(ctx context.Context, event *security.Event) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "append_event")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "append_event", err, startTime)
		if span != nil {
			span.End()
		}
	}()

	if event == nil {
		err = fmt.Errorf("event is required")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	s.events = append(s.events, &cp)

	if overflow := len(s.events) - s.maxEvents; overflow > 0 {
		s.events = s.events[overflow:]
		s.logger.Warn("Security event log full, dropped oldest events",
			"dropped", overflow,
			"max_events", s.maxEvents)
	}
	s.eventsCountAtomic.Store(int64(len(s.events)))

	return nil
}

// ListEvents implements storage.AuditStore. An empty ownerID returns
// events for all owners.
func (s *Store) ListEvents(ctx context.Context, ownerID string, limit int) ([]*security.Event, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "list_events")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "list_events", err, startTime)
		if span != nil {
			span.End()
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*security.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if ownerID != "" && ev.OwnerID != ownerID {
			continue
		}
		cp := *ev
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

// cleanupLoop periodically prunes terminated sessions past retention
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// Cleanup deactivates expired sessions and prunes terminated sessions
// whose last activity is older than the retention period.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	deactivated := 0
	pruned := 0

	for id, rec := range s.sessions {
		if rec.IsActive && rec.ExpiresAt.Before(now) {
			rec.IsActive = false
			deactivated++
		}
		if !rec.IsActive && now.Sub(rec.LastActivityAt) > s.inactiveRetention {
			delete(s.sessions, id)
			pruned++
		}
	}
	s.sessionsCountAtomic.Store(int64(len(s.sessions)))

	if deactivated > 0 || pruned > 0 {
		s.logger.Debug("Session store cleanup completed",
			"deactivated", deactivated,
			"pruned", pruned,
			"remaining", len(s.sessions))
	}
}

// Stop gracefully stops the cleanup goroutine
// Safe to call multiple times concurrently
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
		s.logger.Debug("Memory store stopped")
	})
}

// Stats holds store statistics for monitoring
type Stats struct {
	SessionCount       int     // Total session records held
	ActiveSessionCount int     // Session records currently active
	EventCount         int     // Security events retained
	MaxEvents          int     // Event log capacity
	MemoryPressure     float64 // Percentage of event capacity used (0-100)
}

// GetStats returns current store statistics for monitoring and alerting
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, rec := range s.sessions {
		if rec.IsActive {
			active++
		}
	}

	return Stats{
		SessionCount:       len(s.sessions),
		ActiveSessionCount: active,
		EventCount:         len(s.events),
		MaxEvents:          s.maxEvents,
		MemoryPressure:     float64(len(s.events)) / float64(s.maxEvents) * 100.0,
	}
}

// startStorageSpan starts a tracing span for a storage operation (no-op without instrumentation)
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		if span != nil {
			span.SetStatus(codes.Ok, "")
		}
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
