package security

import "strings"

// Severity classifies how urgently a security event should be reviewed.
type Severity string

const (
	// SeverityLow covers routine events with no direct security impact
	SeverityLow Severity = "low"

	// SeverityMedium covers authentication lifecycle events worth tracking
	SeverityMedium Severity = "medium"

	// SeverityHigh covers events that indicate a possible attack or account compromise
	SeverityHigh Severity = "high"
)

// severityRules maps event kind substrings to severities. Rules are
// evaluated in order and the first match wins, so high-severity patterns
// must come before medium ones ("login_failed" contains "login").
var severityRules = []struct {
	substrings []string
	severity   Severity
}{
	{[]string{"login_failed", "suspicious_activity", "unauthorized_access"}, SeverityHigh},
	{[]string{"login", "logout", "password_reset"}, SeverityMedium},
}

// ClassifySeverity derives the severity of an event from its kind.
// Matching is case-insensitive and by substring; kinds that match no
// rule are classified SeverityLow.
func ClassifySeverity(kind string) Severity {
	lower := strings.ToLower(kind)
	for _, rule := range severityRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return rule.severity
			}
		}
	}
	return SeverityLow
}
