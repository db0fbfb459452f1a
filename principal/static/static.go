// Package static provides a Provider backed by an in-memory principal
// set by the host application, suitable for CLI tools, examples, and
// tests where the authentication flow lives elsewhere.
package static

import (
	"context"
	"sync"

	"github.com/strataplan/sessionguard/principal"
)

// Provider holds the current principal in memory.
// The zero value is a signed-out provider; use New or SetPrincipal.
type Provider struct {
	mu      sync.RWMutex
	current *principal.Principal
}

var _ principal.Provider = (*Provider)(nil)

// New creates a provider with an optional initial principal.
// Pass nil to start signed out.
func New(p *principal.Principal) *Provider {
	return &Provider{current: p}
}

// Name implements principal.Provider.
func (s *Provider) Name() string {
	return "static"
}

// Current implements principal.Provider. A copy is returned so callers
// cannot mutate the stored principal.
func (s *Provider) Current(_ context.Context) (*principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, principal.ErrNoPrincipal
	}
	p := *s.current
	return &p, nil
}

// SetPrincipal signs the given principal in, replacing any previous one.
func (s *Provider) SetPrincipal(p *principal.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = p
}

// Clear signs the current principal out.
func (s *Provider) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
