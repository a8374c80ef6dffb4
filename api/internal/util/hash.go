package util

import (
	"crypto/sha256"
	"encoding/hex"
)

func SHA256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// ShortHash is a stable 16-char digest, used for the webhook path.
func ShortHash(s string) string {
	return SHA256Hex(s)[:16]
}
