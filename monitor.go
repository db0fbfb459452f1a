package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strataplan/sessionguard/instrumentation"
	"github.com/strataplan/sessionguard/principal"
	"github.com/strataplan/sessionguard/security"
)

// MonitorState is the lifecycle state of a Monitor.
type MonitorState int32

const (
	// MonitorStopped means no timers are armed
	MonitorStopped MonitorState = iota

	// MonitorRunning means the periodic sweeps are armed
	MonitorRunning
)

// String returns a human-readable state name
func (s MonitorState) String() string {
	switch s {
	case MonitorStopped:
		return "stopped"
	case MonitorRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Sweep kind names used in logs and metrics
const (
	sweepSecurityCheck = "security_check"
	sweepHeartbeat     = "heartbeat"
	sweepCleanup       = "cleanup"
	sweepIdleCheck     = "idle_check"
)

// Monitor runs the periodic session hygiene sweeps: an anomaly check, an
// activity heartbeat, an expired-session cleanup, and an idle-timeout
// check. The idle check runs on its own clock, driven by explicit
// RecordInteraction calls, because the heartbeat would otherwise mask
// idleness and the timeout could never fire.
//
// All sweep errors are swallowed after logging so a single failed
// iteration can never kill a timer loop. Stopping cancels the schedules
// immediately; a persistence call already in flight completes detached
// and its result is discarded.
type Monitor struct {
	manager  *SessionManager
	provider principal.Provider
	auditor  *security.Auditor
	logger   *slog.Logger
	cfg      MonitorConfig

	instrumentation *instrumentation.Instrumentation

	onAlert        AlertFunc
	onForcedLogout ForcedLogoutFunc

	mu     sync.Mutex
	state  MonitorState
	cancel context.CancelFunc

	// lastInteraction is the wall-clock nanosecond timestamp of the most
	// recent user interaction. This in-process marker is the single
	// source of truth for idle-timeout decisions; the persisted
	// LastActivityAt is display-only.
	lastInteraction atomic.Int64
}

// NewMonitor creates a monitor in the Stopped state.
func NewMonitor(manager *SessionManager, provider principal.Provider, auditor *security.Auditor, cfg Config) *Monitor {
	applySecureDefaults(&cfg)

	if auditor == nil {
		auditor = security.NewAuditor(cfg.Logger, nil, false)
	}

	return &Monitor{
		manager:  manager,
		provider: provider,
		auditor:  auditor,
		logger:   cfg.Logger,
		cfg:      cfg.Monitor,
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation for the monitor
func (mon *Monitor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	mon.instrumentation = inst
}

// SetAlertFunc registers the callback for user-facing alerts.
// Must be called before Start.
func (mon *Monitor) SetAlertFunc(fn AlertFunc) {
	mon.onAlert = fn
}

// SetForcedLogoutFunc registers the callback invoked after an
// idle-timeout forced termination. Must be called before Start.
func (mon *Monitor) SetForcedLogoutFunc(fn ForcedLogoutFunc) {
	mon.onForcedLogout = fn
}

// State returns the monitor's current lifecycle state.
func (mon *Monitor) State() MonitorState {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return mon.state
}

// RecordInteraction marks the current instant as the latest user
// interaction, deferring the idle timeout. The host application calls
// this from its input handlers; it is cheap enough to call on every
// event.
func (mon *Monitor) RecordInteraction() {
	mon.lastInteraction.Store(time.Now().UnixNano())
}

// Start arms the periodic sweeps and triggers an immediate security
// check. Starting a running monitor is a no-op.
func (mon *Monitor) Start() {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	if mon.state == MonitorRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	mon.cancel = cancel
	mon.state = MonitorRunning
	mon.lastInteraction.Store(time.Now().UnixNano())

	go mon.runLoop(ctx, mon.cfg.SecurityCheckInterval, sweepSecurityCheck, mon.securityCheck, true)
	go mon.runLoop(ctx, mon.cfg.HeartbeatInterval, sweepHeartbeat, mon.heartbeat, false)
	go mon.runLoop(ctx, mon.cfg.CleanupInterval, sweepCleanup, mon.cleanupSweep, false)
	go mon.runLoop(ctx, mon.cfg.IdleCheckInterval, sweepIdleCheck, mon.idleCheck, false)

	mon.logger.Info("Session monitor started",
		"security_check_interval", mon.cfg.SecurityCheckInterval,
		"heartbeat_interval", mon.cfg.HeartbeatInterval,
		"cleanup_interval", mon.cfg.CleanupInterval,
		"idle_timeout", mon.cfg.IdleTimeout)
}

// Stop cancels all timer schedules immediately. Idempotent; stopping an
// already-stopped monitor is a no-op. Sweeps already dispatched complete
// detached and their results are discarded.
func (mon *Monitor) Stop() {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	if mon.state != MonitorRunning {
		return
	}

	mon.cancel()
	mon.cancel = nil
	mon.state = MonitorStopped

	mon.logger.Info("Session monitor stopped")
}

// runLoop drives one sweep on its own ticker. Within a loop, a sweep
// completes before the next tick is handled, so one timer's ticks never
// overlap; the four loops are independent of each other. Sweeps receive
// a background context so an in-flight persistence call survives Stop.
func (mon *Monitor) runLoop(ctx context.Context, interval time.Duration, kind string, sweep func(context.Context) error, immediate bool) {
	if immediate {
		mon.runSweep(kind, sweep)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mon.runSweep(kind, sweep)
		case <-ctx.Done():
			return
		}
	}
}

// runSweep executes one sweep, swallowing its error after logging
func (mon *Monitor) runSweep(kind string, sweep func(context.Context) error) {
	start := time.Now()
	ctx := context.Background()

	err := sweep(ctx)
	if err != nil {
		mon.logger.Warn("Monitor sweep failed",
			"sweep", kind,
			"error", err)
	}

	if mon.instrumentation != nil {
		durationMs := float64(time.Since(start).Milliseconds())
		mon.instrumentation.Metrics().RecordSweep(ctx, kind, durationMs, err)
	}
}

// MonitorStats provides observability into monitor state for ops
// dashboards and debugging.
type MonitorStats struct {
	State           string        // current lifecycle state
	LastInteraction time.Time     // most recent recorded user interaction
	IdleFor         time.Duration // time elapsed since the last interaction
	IdleTimeout     time.Duration // configured idle limit
}

// GetStats returns current monitor statistics.
func (mon *Monitor) GetStats() MonitorStats {
	last := time.Unix(0, mon.lastInteraction.Load())
	return MonitorStats{
		State:           mon.State().String(),
		LastInteraction: last,
		IdleFor:         time.Since(last),
		IdleTimeout:     mon.cfg.IdleTimeout,
	}
}

// securityCheck inspects the current owner's active sessions for
// anomalies: too many concurrent sessions, or too many distinct devices.
func (mon *Monitor) securityCheck(ctx context.Context) error {
	p, err := mon.provider.Current(ctx)
	if err != nil {
		if errors.Is(err, principal.ErrNoPrincipal) {
			return nil // signed out, nothing to check
		}
		return fmt.Errorf("failed to resolve principal: %w", err)
	}

	sessions, err := mon.manager.ListSessions(ctx, p.ID)
	if err != nil {
		return err
	}

	if len(sessions) > mon.cfg.MaxActiveSessions {
		mon.auditor.LogEvent(ctx, security.Event{
			Kind:        security.EventMultipleSessions,
			Severity:    security.SeverityMedium,
			Description: fmt.Sprintf("account has %d concurrent active sessions", len(sessions)),
			OwnerID:     p.ID,
			Metadata: map[string]any{
				"session_count": len(sessions),
				"threshold":     mon.cfg.MaxActiveSessions,
			},
		})
	}

	fingerprints := make(map[string]struct{}, len(sessions))
	for _, rec := range sessions {
		fingerprints[rec.DeviceFingerprint] = struct{}{}
	}

	if len(fingerprints) > mon.cfg.MaxDistinctDevices {
		mon.auditor.LogEvent(ctx, security.Event{
			Kind:        security.EventSuspiciousActivity,
			Description: fmt.Sprintf("account active from %d distinct devices", len(fingerprints)),
			OwnerID:     p.ID,
			Metadata: map[string]any{
				"device_count": len(fingerprints),
				"threshold":    mon.cfg.MaxDistinctDevices,
			},
		})

		// This one surfaces to the user immediately, unlike other events
		if mon.onAlert != nil {
			mon.onAlert(Alert{
				Kind:      security.EventSuspiciousActivity,
				Severity:  security.SeverityHigh,
				Message:   fmt.Sprintf("Your account is active on %d devices. If this wasn't you, terminate the other sessions.", len(fingerprints)),
				OwnerID:   p.ID,
				Timestamp: time.Now(),
			})
		}
	}

	return nil
}

// heartbeat pushes an activity update while a principal is authenticated
func (mon *Monitor) heartbeat(ctx context.Context) error {
	_, err := mon.provider.Current(ctx)
	if err != nil {
		if errors.Is(err, principal.ErrNoPrincipal) {
			return nil // heartbeat only runs while authenticated
		}
		return fmt.Errorf("failed to resolve principal: %w", err)
	}

	mon.manager.UpdateActivity(ctx)
	return nil
}

// cleanupSweep batch-deactivates expired sessions
func (mon *Monitor) cleanupSweep(ctx context.Context) error {
	count, err := mon.manager.CleanupExpired(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		mon.auditor.LogEvent(ctx, security.Event{
			Kind:        security.EventSessionExpired,
			Description: "expired sessions deactivated",
			Metadata: map[string]any{
				"count": count,
			},
		})
	}

	return nil
}

// idleCheck force-terminates the current session when the gap since the
// last recorded interaction exceeds the idle timeout
func (mon *Monitor) idleCheck(ctx context.Context) error {
	sessionID := mon.manager.CurrentSessionID()
	if sessionID == "" {
		return nil
	}

	last := time.Unix(0, mon.lastInteraction.Load())
	if time.Since(last) <= mon.cfg.IdleTimeout {
		return nil
	}

	ownerID := ""
	if p, err := mon.provider.Current(ctx); err == nil {
		ownerID = p.ID
	}

	terminated, err := mon.manager.terminate(ctx, sessionID, terminationReasonIdle)
	if err != nil {
		return fmt.Errorf("failed to terminate idle session: %w", err)
	}

	if terminated {
		mon.auditor.LogLogout(ctx, ownerID, sessionID, true)
		mon.logger.Info("Idle session force-terminated",
			"session_id", sessionID,
			"idle_timeout", mon.cfg.IdleTimeout)

		if mon.onForcedLogout != nil {
			mon.onForcedLogout(sessionID)
		}
	}

	// Restart the idle clock so a stale marker cannot re-fire
	mon.lastInteraction.Store(time.Now().UnixNano())

	return nil
}
