package security

import (
	"regexp"
	"strings"
	"unicode"
)

// PasswordMinLength is the minimum accepted password length
const PasswordMinLength = 8

// passwordSpecialChars is the fixed punctuation set accepted as special characters
const passwordSpecialChars = `!@#$%^&*()_+-=[]{}|;:'",.<>?/~` + "`" + `\`

// emailPattern matches a conservative local@domain.tld shape. It is
// intentionally stricter than RFC 5322; addresses it rejects are refused
// rather than normalized.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Validation reason strings surfaced to users inline. Validation
// failures are recovered locally and never logged as security events.
const (
	ReasonEmailEmpty   = "email must not be empty"
	ReasonEmailInvalid = "email must be a valid address like user@example.com"

	ReasonPasswordTooShort  = "password must be at least 8 characters long"
	ReasonPasswordUppercase = "password must contain at least one uppercase letter"
	ReasonPasswordLowercase = "password must contain at least one lowercase letter"
	ReasonPasswordDigit     = "password must contain at least one number"
	ReasonPasswordSpecial   = "password must contain at least one special character"
)

// ValidationResult is the outcome of a validation check.
// When Valid is false, Reason names the first failing rule.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// ValidateEmail checks that s has a conservative local@domain.tld shape.
// No normalization is performed.
func ValidateEmail(s string) ValidationResult {
	if s == "" {
		return ValidationResult{Reason: ReasonEmailEmpty}
	}
	if !emailPattern.MatchString(s) {
		return ValidationResult{Reason: ReasonEmailInvalid}
	}
	return ValidationResult{Valid: true}
}

// ValidatePassword checks password strength against fixed rules.
// Rules are evaluated in order (length, uppercase, lowercase, number,
// special) and the first failure's reason is returned; the length check
// gates the others.
func ValidatePassword(s string) ValidationResult {
	if len(s) < PasswordMinLength {
		return ValidationResult{Reason: ReasonPasswordTooShort}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return ValidationResult{Reason: ReasonPasswordUppercase}
	case !hasLower:
		return ValidationResult{Reason: ReasonPasswordLowercase}
	case !hasDigit:
		return ValidationResult{Reason: ReasonPasswordDigit}
	case !hasSpecial:
		return ValidationResult{Reason: ReasonPasswordSpecial}
	}

	return ValidationResult{Valid: true}
}

// sanitizeReplacer escapes the characters that matter for HTML display
var sanitizeReplacer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize HTML-escapes < > " ' / in s. It is a display-safety
// transform only and must not be relied on to prevent injection into
// non-HTML sinks such as SQL or shell commands.
func Sanitize(s string) string {
	return sanitizeReplacer.Replace(s)
}
