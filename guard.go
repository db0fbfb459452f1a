package sessionguard

import (
	"context"

	"github.com/strataplan/sessionguard/instrumentation"
	"github.com/strataplan/sessionguard/principal"
	"github.com/strataplan/sessionguard/security"
	"github.com/strataplan/sessionguard/storage"
	"github.com/strataplan/sessionguard/storage/memory"
)

// Guard wires the rate limiter, auditor, session manager, and monitor
// together over a single principal provider and store. It is the
// entry point for host applications; the individual components remain
// usable on their own for callers that need less.
type Guard struct {
	cfg      Config
	provider principal.Provider
	store    storage.Store

	rateLimiter *security.RateLimiter
	auditor     *security.Auditor
	manager     *SessionManager
	monitor     *Monitor

	instrumentation *instrumentation.Instrumentation
}

// New creates a Guard from the given provider, store, and configuration.
// Zero-valued configuration fields are replaced with secure defaults.
func New(provider principal.Provider, store storage.Store, cfg Config) (*Guard, error) {
	if provider == nil {
		return nil, ErrInvalidConfig("principal provider is required")
	}
	if store == nil {
		return nil, ErrInvalidConfig("session store is required")
	}

	applySecureDefaults(&cfg)

	rateLimiter := security.NewRateLimiterWithConfig(
		cfg.RateLimit.MaxAttempts,
		cfg.RateLimit.Window,
		cfg.RateLimit.MaxEntries,
		cfg.Logger,
	)

	auditor := security.NewAuditor(cfg.Logger, store, !cfg.Security.AuditDisabled)
	manager := NewSessionManager(provider, store, auditor, cfg)
	monitor := NewMonitor(manager, provider, auditor, cfg)

	return &Guard{
		cfg:         cfg,
		provider:    provider,
		store:       store,
		rateLimiter: rateLimiter,
		auditor:     auditor,
		manager:     manager,
		monitor:     monitor,
	}, nil
}

// SetInstrumentation wires OpenTelemetry instrumentation through every
// component. Call before Start.
func (g *Guard) SetInstrumentation(inst *instrumentation.Instrumentation) {
	g.instrumentation = inst
	g.manager.SetInstrumentation(inst)
	g.monitor.SetInstrumentation(inst)

	g.auditor.SetObserver(func(kind string, severity security.Severity) {
		inst.Metrics().RecordAuditEvent(context.Background(), kind, string(severity))
	})

	if err := inst.RegisterRateLimitSizeCallback(func() int64 {
		return int64(g.rateLimiter.GetStats().CurrentEntries)
	}); err != nil {
		g.cfg.Logger.Warn("Failed to register rate limit gauge", "error", err)
	}

	if memStore, ok := g.store.(*memory.Store); ok {
		memStore.SetInstrumentation(inst)
	}
}

// Allow reports whether an attempt for the given key (typically an
// email address or account identifier) is within the rate limit. A
// refused attempt is still counted and, when configured, audited.
func (g *Guard) Allow(ctx context.Context, key string) bool {
	allowed := g.rateLimiter.Allow(key)

	if g.instrumentation != nil {
		g.instrumentation.Metrics().RecordRateLimitDecision(ctx, allowed)
	}

	if !allowed && g.cfg.Security.LogRateLimitEvents {
		g.auditor.LogRateLimitExceeded(ctx, key, "")
	}

	return allowed
}

// Manager returns the session manager.
func (g *Guard) Manager() *SessionManager {
	return g.manager
}

// Monitor returns the session monitor.
func (g *Guard) Monitor() *Monitor {
	return g.monitor
}

// RateLimiter returns the attempt rate limiter.
func (g *Guard) RateLimiter() *security.RateLimiter {
	return g.rateLimiter
}

// Auditor returns the security event auditor.
func (g *Guard) Auditor() *security.Auditor {
	return g.auditor
}

// Start arms the monitor's periodic sweeps.
func (g *Guard) Start() {
	g.monitor.Start()
}

// Stop shuts down the monitor and the rate limiter's background
// cleanup, then drains any in-flight audit writes. Idempotent.
func (g *Guard) Stop() {
	g.monitor.Stop()
	g.rateLimiter.Stop()
	g.auditor.Flush()
}
