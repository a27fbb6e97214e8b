package auth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// keyEqual compares a presented key with a configured one in constant time.
// An empty presented or configured key never matches.
func keyEqual(presented, configured string) bool {
	if presented == "" || configured == "" {
		return false
	}
	p := sha256.Sum256([]byte(presented))
	c := sha256.Sum256([]byte(configured))
	return subtle.ConstantTimeCompare(p[:], c[:]) == 1
}

// Mask returns a log-safe rendering of a secret.
func Mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	default:
		return secret[:4] + "****"
	}
}
