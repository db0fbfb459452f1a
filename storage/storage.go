package storage

import (
	"context"
	"errors"
	"time"

	"github.com/strataplan/sessionguard/security"
)

// Common storage errors
var (
	// ErrSessionNotFound is returned when a session record does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session with an ID that is already taken
	ErrSessionExists = errors.New("session already exists")
)

// SessionRecord represents one authenticated device or browser instance
// belonging to an account owner.
type SessionRecord struct {
	// ID uniquely identifies the session record
	ID string

	// OwnerID is the account the session belongs to
	OwnerID string

	// DeviceFingerprint is a hex-encoded digest identifying the device
	// instance that created the session
	DeviceFingerprint string

	// IPAddress is the client IP observed at session creation (unredacted;
	// callers are responsible for redacting before display)
	IPAddress string

	// UserAgent is the client user agent observed at session creation
	UserAgent string

	// CreatedAt is when the session was created
	CreatedAt time.Time

	// LastActivityAt is the most recently persisted activity timestamp
	LastActivityAt time.Time

	// ExpiresAt is the fixed expiry deadline, set once at creation
	ExpiresAt time.Time

	// IsActive is false once the session has been terminated or expired.
	// Deactivation is terminal; a record is never reactivated.
	IsActive bool
}

// SessionPatch describes a partial update to a session record.
// Nil fields are left unchanged.
type SessionPatch struct {
	LastActivityAt *time.Time
	IsActive       *bool
}

// SessionStore persists session records.
type SessionStore interface {
	// SaveSession stores a new session record.
	// Returns ErrSessionExists if the ID is already in use.
	SaveSession(ctx context.Context, rec *SessionRecord) error

	// GetSession retrieves a session record by ID.
	// Returns ErrSessionNotFound if it does not exist.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)

	// ListSessions returns the sessions belonging to an owner.
	// When activeOnly is true, terminated and expired records are omitted.
	ListSessions(ctx context.Context, ownerID string, activeOnly bool) ([]*SessionRecord, error)

	// MutateSession applies a partial update to an existing record.
	// Returns ErrSessionNotFound if it does not exist.
	MutateSession(ctx context.Context, id string, patch SessionPatch) error

	// DeactivateExpired marks every active session whose ExpiresAt is
	// strictly before now as inactive, returning the number affected.
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

// AuditStore persists security events for later review.
type AuditStore interface {
	// AppendEvent records a security event.
	AppendEvent(ctx context.Context, event *security.Event) error

	// ListEvents returns the most recent events for an owner, newest first,
	// up to limit. A limit <= 0 means no limit beyond the store's retention.
	ListEvents(ctx context.Context, ownerID string, limit int) ([]*security.Event, error)
}

// Store combines both persistence interfaces. The in-tree backends
// implement all of them; callers needing only one concern should depend
// on the narrower interface.
type Store interface {
	SessionStore
	AuditStore
}
