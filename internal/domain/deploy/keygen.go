package deploy

import (
	"crypto/rand"

	"github.com/sitesmith/backend/internal/shared/errs"
)

const (
	keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	keyLength   = 6

	// maxKeyAttempts bounds the uniqueness retry loop. With 36^6 keys a
	// collision streak this long means the key space is effectively full.
	maxKeyAttempts = 10
)

// newKey returns a random 6-character lowercase alphanumeric key. Byte
// values at or above the largest multiple of the alphabet size are redrawn
// so every character is equally likely.
func newKey() (string, error) {
	const limit = 256 - 256%len(keyAlphabet)
	key := make([]byte, 0, keyLength)
	buf := make([]byte, keyLength)
	for len(key) < keyLength {
		if _, err := rand.Read(buf); err != nil {
			return "", errs.Wrap(errs.KindInternal, "generate deploy key", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			key = append(key, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(key) == keyLength {
				break
			}
		}
	}
	return string(key), nil
}

// allocateKey draws keys until one passes the taken check.
func allocateKey(taken func(key string) (bool, error)) (string, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key, err := newKey()
		if err != nil {
			return "", err
		}
		exists, err := taken(key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}
	return "", errs.New(errs.KindInternal, "could not allocate a unique deploy key")
}
