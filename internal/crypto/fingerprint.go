package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint returns a stable, non-reversible key for value, used where
// identifiers such as emails must not be stored in clear.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
