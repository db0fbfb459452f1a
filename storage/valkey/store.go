// Package valkey provides a Valkey-backed implementation of the storage
// interfaces for deployments that need session state to survive process
// restarts or be shared between processes.
package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/strataplan/sessionguard/security"
	"github.com/strataplan/sessionguard/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "sessionguard:"

	// DefaultMaxEventsPerOwner bounds the per-owner audit event list
	DefaultMaxEventsPerOwner = 1000

	// DefaultInactiveRetention is how long terminated sessions remain
	// readable after their expiry deadline
	DefaultInactiveRetention = 24 * time.Hour

	// scanBatchSize is the number of keys to fetch per SCAN iteration
	scanBatchSize = 100

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second
)

// globalEventsOwner is the pseudo-owner under which every event is also
// indexed, backing ListEvents with an empty owner ID.
const globalEventsOwner = "__all__"

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "sessionguard:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger

	// MaxEventsPerOwner bounds the per-owner audit list (default 1000)
	MaxEventsPerOwner int

	// InactiveRetention is how long session records remain readable after
	// expiry, enforced through key TTLs (default 24h)
	InactiveRetention time.Duration
}

// Store is a Valkey-backed implementation of all storage interfaces.
type Store struct {
	client            valkeygo.Client
	prefix            string
	logger            *slog.Logger
	maxEventsPerOwner int
	inactiveRetention time.Duration
}

// Compile-time interface checks
var (
	_ storage.SessionStore = (*Store)(nil)
	_ storage.AuditStore   = (*Store)(nil)
	_ storage.Store        = (*Store)(nil)
)

// New creates a new Valkey-backed storage instance.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxEvents := cfg.MaxEventsPerOwner
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEventsPerOwner
	}

	retention := cfg.InactiveRetention
	if retention <= 0 {
		retention = DefaultInactiveRetention
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client:            client,
		prefix:            prefix,
		logger:            logger,
		maxEventsPerOwner: maxEvents,
		inactiveRetention: retention,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Key helpers

func (s *Store) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *Store) ownerKey(ownerID string) string {
	return s.prefix + "owner:" + ownerID
}

func (s *Store) eventsKey(ownerID string) string {
	return s.prefix + "events:" + ownerID
}

// sessionTTL returns the remaining time a session key should live:
// until expiry plus the inactive retention window, with a small floor so
// already-expired records are still briefly readable by cleanup.
func (s *Store) sessionTTL(rec *storage.SessionRecord) time.Duration {
	ttl := time.Until(rec.ExpiresAt.Add(s.inactiveRetention))
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// isNilError checks if the error indicates a nil/not-found result from Valkey.
// Uses the valkey-go library's built-in nil detection for robustness.
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}

// JSON serialization types

type sessionJSON struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	DeviceFingerprint string `json:"device_fingerprint"`
	IPAddress         string `json:"ip_address,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
	CreatedAt         int64  `json:"created_at"`
	LastActivityAt    int64  `json:"last_activity_at"`
	ExpiresAt         int64  `json:"expires_at"`
	IsActive          bool   `json:"is_active"`
}

func sessionToJSON(rec *storage.SessionRecord) sessionJSON {
	return sessionJSON{
		ID:                rec.ID,
		OwnerID:           rec.OwnerID,
		DeviceFingerprint: rec.DeviceFingerprint,
		IPAddress:         rec.IPAddress,
		UserAgent:         rec.UserAgent,
		CreatedAt:         rec.CreatedAt.UnixMilli(),
		LastActivityAt:    rec.LastActivityAt.UnixMilli(),
		ExpiresAt:         rec.ExpiresAt.UnixMilli(),
		IsActive:          rec.IsActive,
	}
}

func sessionFromJSON(j sessionJSON) *storage.SessionRecord {
	return &storage.SessionRecord{
		ID:                j.ID,
		OwnerID:           j.OwnerID,
		DeviceFingerprint: j.DeviceFingerprint,
		IPAddress:         j.IPAddress,
		UserAgent:         j.UserAgent,
		CreatedAt:         time.UnixMilli(j.CreatedAt),
		LastActivityAt:    time.UnixMilli(j.LastActivityAt),
		ExpiresAt:         time.UnixMilli(j.ExpiresAt),
		IsActive:          j.IsActive,
	}
}

type eventJSON struct {
	Kind        string         `json:"kind"`
	Severity    string         `json:"severity"`
	Description string         `json:"description,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

func eventToJSON(event *security.Event) eventJSON {
	return eventJSON{
		Kind:        event.Kind,
		Severity:    string(event.Severity),
		Description: event.Description,
		OwnerID:     event.OwnerID,
		IPAddress:   event.IPAddress,
		Metadata:    event.Metadata,
		Timestamp:   event.Timestamp.UnixMilli(),
	}
}

func eventFromJSON(j eventJSON) *security.Event {
	return &security.Event{
		Kind:        j.Kind,
		Severity:    security.Severity(j.Severity),
		Description: j.Description,
		OwnerID:     j.OwnerID,
		IPAddress:   j.IPAddress,
		Metadata:    j.Metadata,
		Timestamp:   time.UnixMilli(j.Timestamp),
	}
}
