package jwtauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/strataplan/sessionguard/principal"
)

var testSecret = []byte("test-secret-key-for-hs256-signing")

func signToken(t *testing.T, secret []byte, claims jwt.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return raw
}

func fixedSource(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, fixedSource("x")); err == nil {
		t.Error("New should reject an empty secret")
	}
	if _, err := New(testSecret, nil); err == nil {
		t.Error("New should reject a nil token source")
	}
}

func TestCurrentValidToken(t *testing.T) {
	token := signToken(t, testSecret, sessionClaims{
		Email:     "user@example.com",
		Name:      "Test User",
		UserAgent: "Mozilla/5.0",
		IPAddress: "192.168.1.42",
		Platform:  "web",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p, err := New(testSecret, fixedSource(token))
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if got.ID != "owner-1" {
		t.Errorf("ID = %q, want owner-1", got.ID)
	}
	if got.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", got.Email)
	}
	if got.Device.IPAddress != "192.168.1.42" {
		t.Errorf("Device.IPAddress = %q, want 192.168.1.42", got.Device.IPAddress)
	}
}

func TestCurrentEmptyToken(t *testing.T) {
	p, err := New(testSecret, fixedSource(""))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Current(context.Background()); !errors.Is(err, principal.ErrNoPrincipal) {
		t.Errorf("Current() error = %v, want ErrNoPrincipal", err)
	}
}

func TestCurrentExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	p, err := New(testSecret, fixedSource(token))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Current(context.Background()); !errors.Is(err, principal.ErrNoPrincipal) {
		t.Errorf("Current() with expired token error = %v, want ErrNoPrincipal", err)
	}
}

func TestCurrentWrongSignature(t *testing.T) {
	token := signToken(t, []byte("a-different-signing-key-entirely"), sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p, err := New(testSecret, fixedSource(token))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Current(context.Background()); !errors.Is(err, principal.ErrNoPrincipal) {
		t.Errorf("Current() with bad signature error = %v, want ErrNoPrincipal", err)
	}
}

func TestCurrentMissingSubject(t *testing.T) {
	token := signToken(t, testSecret, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p, err := New(testSecret, fixedSource(token))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Current(context.Background()); !errors.Is(err, principal.ErrNoPrincipal) {
		t.Errorf("Current() without subject error = %v, want ErrNoPrincipal", err)
	}
}

func TestCurrentIssuerEnforced(t *testing.T) {
	token := signToken(t, testSecret, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-1",
			Issuer:    "other-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p, err := New(testSecret, fixedSource(token), WithIssuer("strataplan"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Current(context.Background()); !errors.Is(err, principal.ErrNoPrincipal) {
		t.Errorf("Current() with wrong issuer error = %v, want ErrNoPrincipal", err)
	}
}
