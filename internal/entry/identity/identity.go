// Package identity normalizes contact values and derives the salted hashes
// used as dedupe keys. Everything here is pure and idempotent.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizePhone keeps digits plus a single leading '+'.
func NormalizePhone(v string) string {
	v = strings.TrimSpace(v)
	var b strings.Builder
	b.Grow(len(v))
	for i, r := range v {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasDigits reports whether a normalized phone has anything besides the '+'.
func HasDigits(phone string) bool {
	return strings.IndexFunc(phone, unicode.IsDigit) >= 0
}

// Hasher derives dedupe hashes with a deployment secret.
type Hasher struct {
	salt string
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Hash returns hex(sha256(salt + ":" + value)). The value must already be normalized.
// The layout matches markers written by earlier deployments, so it must not change.
func (h *Hasher) Hash(normalized string) string {
	sum := sha256.Sum256([]byte(h.salt + ":" + normalized))
	return hex.EncodeToString(sum[:])
}

// Short is a log-safe prefix of a hash.
func Short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
