// Package principal abstracts how the monitoring subsystem learns who is
// currently authenticated. The host application supplies a Provider; the
// session manager and monitor call it before every operation that needs
// an authenticated context.
package principal

import (
	"context"
	"errors"
)

// ErrNoPrincipal is returned by a Provider when no authenticated
// principal is available. Callers treat it as "signed out", not as a
// failure.
var ErrNoPrincipal = errors.New("no authenticated principal")

// DeviceMetadata describes the client instance a principal is using.
// All fields are optional; absent values are simply omitted from the
// session record.
type DeviceMetadata struct {
	// UserAgent is the client's user agent string
	UserAgent string

	// IPAddress is the client's IP as observed by the host application
	IPAddress string

	// Platform identifies the client platform, e.g. "web" or "desktop"
	Platform string
}

// Principal is an authenticated identity.
type Principal struct {
	// ID uniquely identifies the account
	ID string

	// Email is the principal's email address, if known
	Email string

	// Name is a display name, if known
	Name string

	// Device describes the client instance this principal is using
	Device DeviceMetadata
}

// Provider resolves the currently authenticated principal.
type Provider interface {
	// Name returns a short identifier for the provider implementation,
	// used in logs.
	Name() string

	// Current returns the authenticated principal, or ErrNoPrincipal if
	// nobody is signed in.
	Current(ctx context.Context) (*Principal, error)
}
