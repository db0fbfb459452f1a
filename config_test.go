package sessionguard

import (
	"errors"
	"testing"
	"time"

	"github.com/strataplan/sessionguard/security"
)

func TestApplySecureDefaults(t *testing.T) {
	cfg := Config{}
	applySecureDefaults(&cfg)

	if cfg.SessionTTL != DefaultSessionTTL {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, DefaultSessionTTL)
	}
	if cfg.HeartbeatThrottle != DefaultHeartbeatThrottle {
		t.Errorf("HeartbeatThrottle = %v, want %v", cfg.HeartbeatThrottle, DefaultHeartbeatThrottle)
	}
	if cfg.Logger == nil {
		t.Error("Logger should default to a usable logger")
	}

	if cfg.RateLimit.MaxAttempts != security.DefaultMaxAttempts {
		t.Errorf("RateLimit.MaxAttempts = %d, want %d", cfg.RateLimit.MaxAttempts, security.DefaultMaxAttempts)
	}
	if cfg.RateLimit.Window != security.DefaultAttemptWindow {
		t.Errorf("RateLimit.Window = %v, want %v", cfg.RateLimit.Window, security.DefaultAttemptWindow)
	}
	if cfg.RateLimit.MaxEntries != security.DefaultMaxRateLimitEntries {
		t.Errorf("RateLimit.MaxEntries = %d, want %d", cfg.RateLimit.MaxEntries, security.DefaultMaxRateLimitEntries)
	}

	if cfg.Monitor.SecurityCheckInterval != DefaultSecurityCheckInterval {
		t.Errorf("SecurityCheckInterval = %v, want %v", cfg.Monitor.SecurityCheckInterval, DefaultSecurityCheckInterval)
	}
	if cfg.Monitor.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want %v", cfg.Monitor.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Monitor.CleanupInterval != DefaultCleanupInterval {
		t.Errorf("CleanupInterval = %v, want %v", cfg.Monitor.CleanupInterval, DefaultCleanupInterval)
	}
	if cfg.Monitor.IdleCheckInterval != DefaultIdleCheckInterval {
		t.Errorf("IdleCheckInterval = %v, want %v", cfg.Monitor.IdleCheckInterval, DefaultIdleCheckInterval)
	}
	if cfg.Monitor.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want %v", cfg.Monitor.IdleTimeout, DefaultIdleTimeout)
	}
	if cfg.Monitor.MaxActiveSessions != DefaultMaxActiveSessions {
		t.Errorf("MaxActiveSessions = %d, want %d", cfg.Monitor.MaxActiveSessions, DefaultMaxActiveSessions)
	}
	if cfg.Monitor.MaxDistinctDevices != DefaultMaxDistinctDevices {
		t.Errorf("MaxDistinctDevices = %d, want %d", cfg.Monitor.MaxDistinctDevices, DefaultMaxDistinctDevices)
	}
}

func TestApplySecureDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		SessionTTL: time.Hour,
		RateLimit:  RateLimitConfig{MaxAttempts: 10},
		Monitor:    MonitorConfig{IdleTimeout: 5 * time.Minute},
	}
	applySecureDefaults(&cfg)

	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want explicit 1h", cfg.SessionTTL)
	}
	if cfg.RateLimit.MaxAttempts != 10 {
		t.Errorf("RateLimit.MaxAttempts = %d, want explicit 10", cfg.RateLimit.MaxAttempts)
	}
	if cfg.Monitor.IdleTimeout != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want explicit 5m", cfg.Monitor.IdleTimeout)
	}

	// Unset fields still get defaults
	if cfg.RateLimit.Window != security.DefaultAttemptWindow {
		t.Errorf("RateLimit.Window = %v, want %v", cfg.RateLimit.Window, security.DefaultAttemptWindow)
	}
}

func TestGuardErrorFormatting(t *testing.T) {
	err := ErrInvalidConfig("session store is required")
	want := "invalid_config: session store is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("connection refused")
	wrapped := ErrStorageFailure("failed to persist session", cause)
	if !errors.Is(wrapped, cause) {
		t.Error("Wrapped error should unwrap to the underlying cause")
	}
}
