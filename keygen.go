package accounts

import (
	"crypto/rand"
	"math/big"
)

const (
	keyLength   = 20
	keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateKey mints an opaque activation/reset key: 20 alphanumeric
// characters from a cryptographically strong source. Keys carry no account
// information and cannot be derived from one.
func GenerateKey() string {
	max := big.NewInt(int64(len(keyAlphabet)))
	key := make([]byte, keyLength)
	for i := range key {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return GenerateKey()
		}
		key[i] = keyAlphabet[n.Int64()]
	}
	return string(key)
}
