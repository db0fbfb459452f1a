package sessionguard

import (
	"log/slog"
	"time"

	"github.com/strataplan/sessionguard/security"
)

// Default configuration values. They mirror the policy the library
// enforces out of the box; applySecureDefaults fills any zero value with
// these, so an empty Config is a safe Config.
const (
	// DefaultSessionTTL is the fixed session lifetime set at creation.
	// Activity never extends it.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultSecurityCheckInterval is how often the monitor inspects the
	// current owner's sessions for anomalies
	DefaultSecurityCheckInterval = 5 * time.Minute

	// DefaultHeartbeatInterval is how often activity is pushed to the
	// session store while a principal is authenticated
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultCleanupInterval is how often expired sessions are
	// batch-deactivated
	DefaultCleanupInterval = 60 * time.Minute

	// DefaultIdleCheckInterval is how often the idle timeout is checked.
	// It runs on its own clock, separate from the heartbeat, because the
	// heartbeat itself would otherwise mask idleness.
	DefaultIdleCheckInterval = time.Minute

	// DefaultIdleTimeout is how long without user interaction before the
	// current session is force-terminated
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultMaxActiveSessions is the concurrent active session count
	// above which a multiple_sessions event is emitted
	DefaultMaxActiveSessions = 5

	// DefaultMaxDistinctDevices is the distinct fingerprint count above
	// which a suspicious_activity event and user-facing alert are raised
	DefaultMaxDistinctDevices = 3

	// DefaultHeartbeatThrottle is the minimum spacing between persisted
	// activity updates, protecting the store from redundant
	// UpdateActivity calls
	DefaultHeartbeatThrottle = 30 * time.Second
)

// RateLimitConfig configures the attempt rate limiter.
type RateLimitConfig struct {
	// MaxAttempts per key per window (default 5)
	MaxAttempts int

	// Window is the fixed attempt window (default 15m)
	Window time.Duration

	// MaxEntries bounds the number of tracked keys (default 10000)
	MaxEntries int
}

// MonitorConfig configures the session/activity monitor.
type MonitorConfig struct {
	// SecurityCheckInterval is the anomaly sweep cadence (default 5m)
	SecurityCheckInterval time.Duration

	// HeartbeatInterval is the activity push cadence (default 30s)
	HeartbeatInterval time.Duration

	// CleanupInterval is the expired-session sweep cadence (default 60m)
	CleanupInterval time.Duration

	// IdleCheckInterval is the idle timeout check cadence (default 1m)
	IdleCheckInterval time.Duration

	// IdleTimeout is the interaction gap that forces a logout (default 30m)
	IdleTimeout time.Duration

	// MaxActiveSessions is the session count anomaly threshold (default 5)
	MaxActiveSessions int

	// MaxDistinctDevices is the fingerprint diversity anomaly threshold (default 3)
	MaxDistinctDevices int
}

// SecurityConfig configures audit behavior.
type SecurityConfig struct {
	// AuditDisabled turns off security event logging entirely.
	// Enabled by default.
	AuditDisabled bool

	// LogRateLimitEvents additionally records a rate_limit_exceeded
	// security event whenever an attempt is refused. Off by default
	// because refused attempts can be high-volume.
	LogRateLimitEvents bool
}

// Config holds configuration for a Guard.
// The zero value is usable; all fields have secure defaults.
type Config struct {
	// SessionTTL is the fixed lifetime of new sessions (default 24h)
	SessionTTL time.Duration

	// HeartbeatThrottle is the minimum spacing between persisted
	// activity updates (default 30s)
	HeartbeatThrottle time.Duration

	RateLimit RateLimitConfig
	Monitor   MonitorConfig
	Security  SecurityConfig

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// applySecureDefaults fills zero values with the library defaults.
func applySecureDefaults(cfg *Config) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.HeartbeatThrottle <= 0 {
		cfg.HeartbeatThrottle = DefaultHeartbeatThrottle
	}
	if cfg.RateLimit.MaxAttempts <= 0 {
		cfg.RateLimit.MaxAttempts = security.DefaultMaxAttempts
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = security.DefaultAttemptWindow
	}
	if cfg.RateLimit.MaxEntries <= 0 {
		cfg.RateLimit.MaxEntries = security.DefaultMaxRateLimitEntries
	}
	if cfg.Monitor.SecurityCheckInterval <= 0 {
		cfg.Monitor.SecurityCheckInterval = DefaultSecurityCheckInterval
	}
	if cfg.Monitor.HeartbeatInterval <= 0 {
		cfg.Monitor.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Monitor.CleanupInterval <= 0 {
		cfg.Monitor.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Monitor.IdleCheckInterval <= 0 {
		cfg.Monitor.IdleCheckInterval = DefaultIdleCheckInterval
	}
	if cfg.Monitor.IdleTimeout <= 0 {
		cfg.Monitor.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Monitor.MaxActiveSessions <= 0 {
		cfg.Monitor.MaxActiveSessions = DefaultMaxActiveSessions
	}
	if cfg.Monitor.MaxDistinctDevices <= 0 {
		cfg.Monitor.MaxDistinctDevices = DefaultMaxDistinctDevices
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}
