package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fingerprint derives a non-reversible device fingerprint for a new
// session: a SHA-256 digest over the owner ID, the creation timestamp,
// and a random per-creation nonce, rendered as lowercase hex. The nonce
// guarantees the output cannot be reversed to the owner ID or replayed
// across sessions, and no bearer credential is ever part of the input.
func Fingerprint(ownerID string) string {
	input := fmt.Sprintf("%s:%d:%s", ownerID, time.Now().UnixNano(), uuid.NewString())
	digest := sha256.Sum256([]byte(input))
	return hex.EncodeToString(digest[:])
}
