// Package identity derives the opaque user handle used in logs and by the account service.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ErrEmptySecret is returned when no hashing key is configured.
var ErrEmptySecret = errors.New("identity: secret is empty")

// Hasher maps raw Telegram user ids onto stable keyed digests.
type Hasher struct {
	key []byte
}

// NewHasher builds a Hasher keyed with secret. BLAKE2b accepts keys of up to 64 bytes.
func NewHasher(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(secret) > blake2b.Size {
		return nil, fmt.Errorf("identity: secret longer than %d bytes", blake2b.Size)
	}
	return &Hasher{key: []byte(secret)}, nil
}

// Hash returns the hex encoded keyed BLAKE2b-256 digest of uid.
func (h *Hasher) Hash(uid string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is checked in NewHasher
		panic(err)
	}
	mac.Write([]byte(uid))
	return hex.EncodeToString(mac.Sum(nil))
}
