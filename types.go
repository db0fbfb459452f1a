// Package sessionguard provides client-side session and security
// monitoring: attempt rate limiting, credential validation, security
// event auditing, session record management, and a timer-driven monitor
// that detects anomalies and evicts idle sessions.
//
// The composition root is Guard; construct one with a principal.Provider
// and a storage backend, then start its Monitor.
package sessionguard

import (
	"time"

	"github.com/strataplan/sessionguard/security"
)

// Alert is a detected condition that must surface to the user
// immediately, unlike ordinary fire-and-forget security events.
type Alert struct {
	// Kind is the security event kind that raised the alert
	Kind string

	// Severity of the underlying event
	Severity security.Severity

	// Message is a short human-readable summary for display
	Message string

	// OwnerID is the affected account
	OwnerID string

	// Timestamp is when the condition was detected
	Timestamp time.Time
}

// AlertFunc receives user-facing alerts raised by the monitor.
// It is called from the monitor's sweep goroutine and must not block.
type AlertFunc func(Alert)

// ForcedLogoutFunc is called after the monitor force-terminates the
// current session, so the host application can redirect to its
// unauthenticated entry point. Called from the monitor's idle-check
// goroutine and must not block.
type ForcedLogoutFunc func(sessionID string)
