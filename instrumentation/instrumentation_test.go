package instrumentation

import (
	"context"
	"errors"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if inst.config.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", inst.config.ServiceName, DefaultServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("ServiceVersion = %q, want %q", inst.config.ServiceVersion, DefaultServiceVersion)
	}
	if inst.Metrics() == nil {
		t.Error("Metrics() should not be nil")
	}
	if inst.MeterProvider() == nil {
		t.Error("MeterProvider() should not be nil")
	}
	if inst.TracerProvider() == nil {
		t.Error("TracerProvider() should not be nil")
	}
}

func TestNewDisabledUsesNoopProviders(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// No-op providers must still yield usable instruments
	ctx := context.Background()
	m := inst.Metrics()
	m.RecordSessionCreated(ctx)
	m.RecordSessionTerminated(ctx, "user")
	m.RecordSessionsExpired(ctx, 3)
	m.RecordHeartbeat(ctx)
	m.RecordSweep(ctx, "security_check", 1.5, nil)
	m.RecordSweep(ctx, "cleanup", 0.5, errors.New("backend down"))
	m.RecordRateLimitDecision(ctx, true)
	m.RecordRateLimitDecision(ctx, false)
	m.RecordAuditEvent(ctx, "login", "medium")
	m.RecordStorageOperation(ctx, "save_session", "success", 2.0)
}

func TestRegisterStorageSizeCallbacks(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = inst.RegisterStorageSizeCallbacks(
		func() int64 { return 5 },
		func() int64 { return 12 },
	)
	if err != nil {
		t.Errorf("RegisterStorageSizeCallbacks failed: %v", err)
	}
}

func TestRegisterRateLimitSizeCallback(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := inst.RegisterRateLimitSizeCallback(func() int64 { return 7 }); err != nil {
		t.Errorf("RegisterRateLimitSizeCallback failed: %v", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("First Shutdown failed: %v", err)
	}
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("Second Shutdown failed: %v", err)
	}
}

func TestMeterAndTracerScopes(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if inst.Meter("session") == nil {
		t.Error("Meter should not be nil")
	}
	if inst.Tracer("storage") == nil {
		t.Error("Tracer should not be nil")
	}
}

func TestNilSafeSpanHelpers(t *testing.T) {
	// All helpers must tolerate nil spans
	RecordError(nil, errors.New("boom"))
	SetSpanSuccess(nil)
	SetSpanError(nil, "bad")
	SetSpanAttributes(nil)
	AddSessionAttributes(nil, "session-1", "abcd1234")
	AddStorageAttributes(nil, "save_session", "memory")
	AddSweepAttributes(nil, "security_check")
}
