package sessionguard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/strataplan/sessionguard/principal"
	"github.com/strataplan/sessionguard/principal/static"
	"github.com/strataplan/sessionguard/security"
	"github.com/strataplan/sessionguard/storage"
	"github.com/strataplan/sessionguard/storage/memory"
)

func testPrincipal() *principal.Principal {
	return &principal.Principal{
		ID:    "user-1",
		Email: "user@example.com",
		Name:  "Test User",
		Device: principal.DeviceMetadata{
			UserAgent: "test-agent/1.0",
			IPAddress: "192.168.1.57",
			Platform:  "linux",
		},
	}
}

func testManager(t *testing.T, cfg Config) (*SessionManager, *memory.Store, *static.Provider) {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Stop)

	provider := static.New(testPrincipal())
	return NewSessionManager(provider, store, nil, cfg), store, provider
}

func TestCreateSession(t *testing.T) {
	m, store, _ := testManager(t, Config{})

	rec, err := m.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if rec.ID == "" {
		t.Error("Expected non-empty session ID")
	}
	if rec.OwnerID != "user-1" {
		t.Errorf("OwnerID = %q, want %q", rec.OwnerID, "user-1")
	}
	if !rec.IsActive {
		t.Error("New session should be active")
	}
	if len(rec.DeviceFingerprint) != 64 {
		t.Errorf("Fingerprint length = %d, want 64", len(rec.DeviceFingerprint))
	}

	// Expiry is fixed at creation time plus the TTL
	want := rec.CreatedAt.Add(DefaultSessionTTL)
	if !rec.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, want)
	}

	// The returned copy is redacted, the stored record is not
	if rec.IPAddress != "192.168.1.xxx" {
		t.Errorf("IPAddress = %q, want %q", rec.IPAddress, "192.168.1.xxx")
	}
	stored, err := store.GetSession(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.IPAddress != "192.168.1.57" {
		t.Errorf("Stored IPAddress = %q, want raw IP", stored.IPAddress)
	}

	if m.CurrentSessionID() != rec.ID {
		t.Errorf("CurrentSessionID = %q, want %q", m.CurrentSessionID(), rec.ID)
	}
	if m.CurrentFingerprint() != rec.DeviceFingerprint {
		t.Error("CurrentFingerprint should match the created record")
	}
}

func TestCreateSessionDistinctFingerprints(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	first, err := m.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	second, err := m.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if first.DeviceFingerprint == second.DeviceFingerprint {
		t.Error("Fingerprints should differ between creations for the same owner")
	}
}

func TestCreateSessionNoPrincipal(t *testing.T) {
	m, _, provider := testManager(t, Config{})
	provider.Clear()

	_, err := m.CreateSession(context.Background())
	if err == nil {
		t.Fatal("Expected error when signed out")
	}

	var guardErr *GuardError
	if !errors.As(err, &guardErr) {
		t.Fatalf("Expected *GuardError, got %T", err)
	}
	if guardErr.Code != ErrorCodeNoPrincipal {
		t.Errorf("Code = %q, want %q", guardErr.Code, ErrorCodeNoPrincipal)
	}
}

func TestListSessionsRedacted(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	if _, err := m.CreateSession(context.Background()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sessions, err := m.ListSessions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if !strings.HasSuffix(sessions[0].IPAddress, ".xxx") {
		t.Errorf("Listed IPAddress %q should be redacted", sessions[0].IPAddress)
	}
}

func TestUpdateActivity(t *testing.T) {
	m, store, _ := testManager(t, Config{HeartbeatThrottle: time.Millisecond})

	rec, err := m.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	m.UpdateActivity(context.Background())

	stored, err := store.GetSession(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !stored.LastActivityAt.After(stored.CreatedAt) {
		t.Error("LastActivityAt should advance after UpdateActivity")
	}
}

func TestUpdateActivityWithoutSession(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	// No session yet; must be a silent no-op
	m.UpdateActivity(context.Background())
}

func TestTerminate(t *testing.T) {
	m, store, _ := testManager(t, Config{})

	rec, err := m.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	ok, err := m.Terminate(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if !ok {
		t.Error("Terminate should report success for an active session")
	}

	stored, err := store.GetSession(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.IsActive {
		t.Error("Session should be inactive after Terminate")
	}
	if m.CurrentSessionID() != "" {
		t.Error("Terminating the current session should clear CurrentSessionID")
	}

	// Already inactive: no error, no success
	ok, err = m.Terminate(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Second Terminate errored: %v", err)
	}
	if ok {
		t.Error("Terminating an inactive session should report false")
	}
}

func TestTerminateUnknownSession(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	ok, err := m.Terminate(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("Terminate errored: %v", err)
	}
	if ok {
		t.Error("Terminating an unknown session should report false")
	}
}

func TestTerminateAllOthers(t *testing.T) {
	m, store, _ := testManager(t, Config{})
	ctx := context.Background()

	current, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Sessions from two other devices for the same owner
	now := time.Now()
	for _, id := range []string{"other-1", "other-2"} {
		err := store.SaveSession(ctx, &storage.SessionRecord{
			ID:                id,
			OwnerID:           "user-1",
			DeviceFingerprint: "fp-" + id,
			CreatedAt:         now,
			LastActivityAt:    now,
			ExpiresAt:         now.Add(time.Hour),
			IsActive:          true,
		})
		if err != nil {
			t.Fatalf("SaveSession(%s) failed: %v", id, err)
		}
	}

	ok, err := m.TerminateAllOthers(ctx)
	if err != nil {
		t.Fatalf("TerminateAllOthers failed: %v", err)
	}
	if !ok {
		t.Error("TerminateAllOthers should report success")
	}

	sessions, err := m.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 surviving session, got %d", len(sessions))
	}
	if sessions[0].DeviceFingerprint != current.DeviceFingerprint {
		t.Error("The surviving session should be this device's session")
	}
	if m.CurrentSessionID() != current.ID {
		t.Error("Current session should survive TerminateAllOthers")
	}
}

func TestTerminateAllOthersWithoutCurrentSession(t *testing.T) {
	m, store, _ := testManager(t, Config{})
	ctx := context.Background()

	// Sessions exist for the owner, but this process created none of them
	now := time.Now()
	for _, id := range []string{"other-1", "other-2"} {
		err := store.SaveSession(ctx, &storage.SessionRecord{
			ID:                id,
			OwnerID:           "user-1",
			DeviceFingerprint: "fp-" + id,
			CreatedAt:         now,
			LastActivityAt:    now,
			ExpiresAt:         now.Add(time.Hour),
			IsActive:          true,
		})
		if err != nil {
			t.Fatalf("SaveSession(%s) failed: %v", id, err)
		}
	}

	ok, err := m.TerminateAllOthers(ctx)
	if err != nil {
		t.Fatalf("TerminateAllOthers errored: %v", err)
	}
	if ok {
		t.Error("TerminateAllOthers should report false without a current session")
	}

	sessions, err := store.ListSessions(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("Expected both sessions untouched, got %d active", len(sessions))
	}
}

func TestTerminateAllOthersNoPrincipal(t *testing.T) {
	m, _, provider := testManager(t, Config{})
	provider.Clear()

	_, err := m.TerminateAllOthers(context.Background())
	var guardErr *GuardError
	if !errors.As(err, &guardErr) || guardErr.Code != ErrorCodeNoPrincipal {
		t.Errorf("Expected no_principal error, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	m, store, _ := testManager(t, Config{})
	ctx := context.Background()

	now := time.Now()
	past := &storage.SessionRecord{
		ID:                "expired",
		OwnerID:           "user-1",
		DeviceFingerprint: "fp-expired",
		CreatedAt:         now.Add(-25 * time.Hour),
		LastActivityAt:    now.Add(-time.Minute), // recent activity does not extend expiry
		ExpiresAt:         now.Add(-time.Hour),
		IsActive:          true,
	}
	future := &storage.SessionRecord{
		ID:                "live",
		OwnerID:           "user-1",
		DeviceFingerprint: "fp-live",
		CreatedAt:         now,
		LastActivityAt:    now,
		ExpiresAt:         now.Add(time.Hour),
		IsActive:          true,
	}
	for _, rec := range []*storage.SessionRecord{past, future} {
		if err := store.SaveSession(ctx, rec); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	count, err := m.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Deactivated %d sessions, want 1", count)
	}

	// Idempotent: a second pass finds nothing
	count, err = m.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("Second CleanupExpired failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Second pass deactivated %d sessions, want 0", count)
	}

	stored, err := store.GetSession(ctx, "live")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !stored.IsActive {
		t.Error("Unexpired session should stay active")
	}
}

func TestCreateSessionAuditsLogin(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Stop)

	cfg := Config{}
	applySecureDefaults(&cfg)
	auditor := security.NewAuditor(cfg.Logger, store, true)

	provider := static.New(testPrincipal())
	m := NewSessionManager(provider, store, auditor, cfg)

	if _, err := m.CreateSession(context.Background()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	auditor.Flush()

	events, err := store.ListEvents(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 audit event, got %d", len(events))
	}
	if events[0].Kind != "login" {
		t.Errorf("Event kind = %q, want %q", events[0].Kind, "login")
	}
}
