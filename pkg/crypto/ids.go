package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	sessionIDBytes      = 32
	notificationIDBytes = 16
)

// NewSessionID returns a high-entropy opaque session identifier (32 random
// bytes, hex encoded).
func NewSessionID() (string, error) {
	return randomHex(sessionIDBytes)
}

// NewNotificationID returns a random notification identifier (16 random bytes,
// hex encoded).
func NewNotificationID() (string, error) {
	return randomHex(notificationIDBytes)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
