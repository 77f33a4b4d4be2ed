// README: HMAC-based hashing for sensitive identifiers. Raw driving license
// and vehicle registration numbers are never stored, only their hashes.
package fraud

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type IdentityHasher struct {
	pepper []byte
}

func NewIdentityHasher(pepper string) *IdentityHasher {
	return &IdentityHasher{pepper: []byte(pepper)}
}

// Normalize strips whitespace and common separators and uppercases, so the
// same physical identifier always maps to the same hash.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch r {
		case ' ', '\t', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (h *IdentityHasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(Normalize(raw)))
	return hex.EncodeToString(mac.Sum(nil))
}
