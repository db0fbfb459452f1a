package security

import (
	"regexp"
	"testing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestFingerprintFormat(t *testing.T) {
	fp := Fingerprint("owner-1")
	if !hexPattern.MatchString(fp) {
		t.Errorf("Fingerprint = %q, want 64 lowercase hex characters", fp)
	}
}

func TestFingerprintUniquePerCreation(t *testing.T) {
	// The per-creation nonce makes fingerprints unique even for the same
	// owner at the same instant
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		fp := Fingerprint("owner-1")
		if seen[fp] {
			t.Fatalf("Fingerprint collision after %d creations: %s", i, fp)
		}
		seen[fp] = true
	}
}

func TestFingerprintDoesNotEmbedOwnerID(t *testing.T) {
	const owner = "owner-with-recognizable-id"
	fp := Fingerprint(owner)
	if len(fp) != 64 {
		t.Fatalf("Fingerprint length = %d, want 64", len(fp))
	}
	if fp == owner {
		t.Error("Fingerprint must not be the raw owner ID")
	}
}
