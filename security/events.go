package security

// Event kind constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when recording security-relevant events.
const (
	// Authentication lifecycle events

	// EventLogin is recorded when a principal signs in and a session is created
	EventLogin = "login"

	// EventLoginFailed is recorded when an authentication attempt fails
	EventLoginFailed = "login_failed"

	// EventLogout is recorded when a session ends, whether user-initiated or forced
	EventLogout = "logout"

	// EventPasswordReset is recorded when a password reset is performed
	EventPasswordReset = "password_reset"

	// Security violation events

	// EventSuspiciousActivity is recorded for behavior that warrants review,
	// such as an account active from an unusual number of distinct devices
	EventSuspiciousActivity = "suspicious_activity"

	// EventUnauthorizedAccess is recorded when access is attempted without authorization
	EventUnauthorizedAccess = "unauthorized_access"

	// EventRateLimitExceeded is recorded when a rate limit refuses an attempt
	EventRateLimitExceeded = "rate_limit_exceeded"

	// Session hygiene events

	// EventMultipleSessions is recorded when an owner holds more concurrent
	// active sessions than the configured threshold
	EventMultipleSessions = "multiple_sessions"

	// EventSessionExpired is recorded when expired sessions are cleaned up
	EventSessionExpired = "session_expired"
)
