package estimates

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	shareTokenBytes = 24
	// ShareTokenLength is the length of the hex-encoded share token.
	ShareTokenLength = shareTokenBytes * 2
)

// NewShareToken returns 24 random bytes as lowercase hex.
func NewShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// IsShareToken reports whether s has the exact shape of a share token.
func IsShareToken(s string) bool {
	if len(s) != ShareTokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
