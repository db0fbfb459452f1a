package sessionguard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/strataplan/sessionguard/instrumentation"
	"github.com/strataplan/sessionguard/internal/util"
	"github.com/strataplan/sessionguard/principal"
	"github.com/strataplan/sessionguard/security"
	"github.com/strataplan/sessionguard/storage"
)

// Session termination reasons, used for metrics and logging
const (
	terminationReasonUser   = "user"
	terminationReasonOthers = "others"
	terminationReasonIdle   = "idle_timeout"
)

// SessionManager creates, lists, refreshes, and revokes session records
// for the currently authenticated principal. It remembers the session
// and device fingerprint it created for this process, which is what
// TerminateAllOthers preserves and the activity heartbeat updates.
//
// IP addresses are redacted on every record leaving this component; raw
// IPs exist only inside the store.
type SessionManager struct {
	provider   principal.Provider
	store      storage.SessionStore
	auditor    *security.Auditor
	logger     *slog.Logger
	sessionTTL time.Duration

	// heartbeat throttles persisted activity updates so redundant
	// UpdateActivity calls stay cheap
	heartbeat *rate.Limiter

	instrumentation *instrumentation.Instrumentation

	mu                 sync.RWMutex
	currentSessionID   string
	currentFingerprint string
}

// NewSessionManager creates a session manager. The auditor may be nil to
// disable event logging.
func NewSessionManager(provider principal.Provider, store storage.SessionStore, auditor *security.Auditor, cfg Config) *SessionManager {
	applySecureDefaults(&cfg)

	if auditor == nil {
		auditor = security.NewAuditor(cfg.Logger, nil, false)
	}

	return &SessionManager{
		provider:   provider,
		store:      store,
		auditor:    auditor,
		logger:     cfg.Logger,
		sessionTTL: cfg.SessionTTL,
		heartbeat:  rate.NewLimiter(rate.Every(cfg.HeartbeatThrottle), 1),
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation for the manager
func (m *SessionManager) SetInstrumentation(inst *instrumentation.Instrumentation) {
	m.instrumentation = inst
}

// CreateSession creates one session record for the authenticated
// principal, with a fixed expiry of now plus the configured TTL. The
// device fingerprint is derived fresh per creation and never embeds the
// bearer credential. Returns a redacted copy of the stored record.
//
// Returns a no_principal error when nobody is signed in, and a
// storage_failure error when persistence fails.
func (m *SessionManager) CreateSession(ctx context.Context) (*storage.SessionRecord, error) {
	p, err := m.provider.Current(ctx)
	if err != nil {
		if errors.Is(err, principal.ErrNoPrincipal) {
			return nil, ErrNoPrincipalContext("session creation requires an authenticated principal")
		}
		return nil, ErrStorageFailure("failed to resolve principal", err)
	}

	now := time.Now()
	rec := &storage.SessionRecord{
		ID:                uuid.NewString(),
		OwnerID:           p.ID,
		DeviceFingerprint: security.Fingerprint(p.ID),
		IPAddress:         p.Device.IPAddress,
		UserAgent:         p.Device.UserAgent,
		CreatedAt:         now,
		LastActivityAt:    now,
		ExpiresAt:         now.Add(m.sessionTTL),
		IsActive:          true,
	}

	if err := m.store.SaveSession(ctx, rec); err != nil {
		return nil, ErrStorageFailure("failed to persist session", err)
	}

	m.mu.Lock()
	m.currentSessionID = rec.ID
	m.currentFingerprint = rec.DeviceFingerprint
	m.mu.Unlock()

	m.auditor.LogLogin(ctx, p.ID, p.Device.IPAddress, rec.ID)
	if m.instrumentation != nil {
		m.instrumentation.Metrics().RecordSessionCreated(ctx)
	}

	m.logger.Info("Session created",
		"session_id", rec.ID,
		"owner_id_hash", security.HashForLogging(p.ID),
		"fingerprint_prefix", util.SafeTruncate(rec.DeviceFingerprint, 12),
		"expires_at", rec.ExpiresAt)

	cp := *rec
	cp.IPAddress = security.RedactIP(cp.IPAddress)
	return &cp, nil
}

// ListSessions returns the owner's active sessions, newest activity
// first, with IP addresses redacted.
func (m *SessionManager) ListSessions(ctx context.Context, ownerID string) ([]*storage.SessionRecord, error) {
	sessions, err := m.store.ListSessions(ctx, ownerID, true)
	if err != nil {
		return nil, ErrStorageFailure("failed to list sessions", err)
	}

	for _, rec := range sessions {
		rec.IPAddress = security.RedactIP(rec.IPAddress)
	}

	return sessions, nil
}

// UpdateActivity advances the current session's last-activity timestamp.
// Idempotent and safe to call redundantly: persistence is throttled, and
// failures are logged rather than surfaced because the heartbeat is
// fire-and-forget.
func (m *SessionManager) UpdateActivity(ctx context.Context) {
	m.mu.RLock()
	sessionID := m.currentSessionID
	m.mu.RUnlock()

	if sessionID == "" {
		return
	}
	if !m.heartbeat.Allow() {
		return
	}

	now := time.Now()
	err := m.store.MutateSession(ctx, sessionID, storage.SessionPatch{LastActivityAt: &now})
	if err != nil {
		m.logger.Warn("Failed to persist activity heartbeat",
			"session_id", sessionID,
			"error", err)
		return
	}

	if m.instrumentation != nil {
		m.instrumentation.Metrics().RecordHeartbeat(ctx)
	}
}

// Terminate deactivates exactly one session. Returns false without
// error when the record does not exist or is already inactive; storage
// failures are returned so callers can show feedback.
func (m *SessionManager) Terminate(ctx context.Context, sessionID string) (bool, error) {
	return m.terminate(ctx, sessionID, terminationReasonUser)
}

func (m *SessionManager) terminate(ctx context.Context, sessionID, reason string) (bool, error) {
	rec, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return false, nil
		}
		return false, ErrStorageFailure("failed to load session", err)
	}
	if !rec.IsActive {
		return false, nil
	}

	inactive := false
	if err := m.store.MutateSession(ctx, sessionID, storage.SessionPatch{IsActive: &inactive}); err != nil {
		return false, ErrStorageFailure("failed to terminate session", err)
	}

	m.mu.Lock()
	if m.currentSessionID == sessionID {
		m.currentSessionID = ""
		m.currentFingerprint = ""
	}
	m.mu.Unlock()

	if m.instrumentation != nil {
		m.instrumentation.Metrics().RecordSessionTerminated(ctx, reason)
	}

	m.logger.Info("Session terminated",
		"session_id", sessionID,
		"reason", reason)

	return true, nil
}

// TerminateAllOthers deactivates every active session of the current
// principal except the one matching this process's device fingerprint.
// Returns false on lookup failure, and false without side effects when
// this process has no current session to preserve.
func (m *SessionManager) TerminateAllOthers(ctx context.Context) (bool, error) {
	p, err := m.provider.Current(ctx)
	if err != nil {
		if errors.Is(err, principal.ErrNoPrincipal) {
			return false, ErrNoPrincipalContext("terminating sessions requires an authenticated principal")
		}
		return false, ErrStorageFailure("failed to resolve principal", err)
	}

	m.mu.RLock()
	fingerprint := m.currentFingerprint
	m.mu.RUnlock()

	// Without a current session there is no "this device" to preserve,
	// and an empty fingerprint would match nothing and terminate
	// everything.
	if fingerprint == "" {
		m.logger.Warn("Refusing to terminate other sessions without a current session")
		return false, nil
	}

	sessions, err := m.store.ListSessions(ctx, p.ID, true)
	if err != nil {
		return false, ErrStorageFailure("failed to list sessions", err)
	}

	terminated := 0
	inactive := false
	for _, rec := range sessions {
		if rec.DeviceFingerprint == fingerprint {
			continue
		}
		if err := m.store.MutateSession(ctx, rec.ID, storage.SessionPatch{IsActive: &inactive}); err != nil {
			return false, ErrStorageFailure("failed to terminate session", err)
		}
		terminated++
		if m.instrumentation != nil {
			m.instrumentation.Metrics().RecordSessionTerminated(ctx, terminationReasonOthers)
		}
	}

	if terminated > 0 {
		m.auditor.LogEvent(ctx, security.Event{
			Kind:        security.EventLogout,
			Description: "other sessions terminated",
			OwnerID:     p.ID,
			Metadata: map[string]any{
				"terminated": terminated,
				"initiator":  "terminate_all_others",
			},
		})
	}

	m.logger.Info("Terminated other sessions",
		"owner_id_hash", security.HashForLogging(p.ID),
		"terminated", terminated)

	return true, nil
}

// CleanupExpired batch-deactivates every session whose expiry deadline
// has passed, regardless of activity recency. Idempotent and safe to run
// concurrently with itself.
func (m *SessionManager) CleanupExpired(ctx context.Context) (int, error) {
	count, err := m.store.DeactivateExpired(ctx, time.Now())
	if err != nil {
		return count, ErrStorageFailure("failed to clean up expired sessions", err)
	}

	if m.instrumentation != nil {
		m.instrumentation.Metrics().RecordSessionsExpired(ctx, count)
	}

	return count, nil
}

// CurrentSessionID returns the ID of the session this process created,
// or "" when none is active.
func (m *SessionManager) CurrentSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentSessionID
}

// CurrentFingerprint returns the device fingerprint of this process's
// session, or "" when none is active.
func (m *SessionManager) CurrentFingerprint() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentFingerprint
}
