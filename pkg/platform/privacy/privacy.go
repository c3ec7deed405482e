// Package privacy keeps student identifiers out of logs and event streams.
package privacy

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Hasher produces stable keyed digests of identifiers so events can be
// correlated without carrying the raw DNI.
type Hasher struct {
	key []byte
}

// NewHasher builds a keyed hasher. An empty key yields unkeyed BLAKE2b, which
// is fine for development but lets anyone with the DNI space recompute digests.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("hash key must be at most %d bytes", blake2b.Size)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// Hash returns the hex encoded 128-bit digest of value.
func (h *Hasher) Hash(value string) string {
	d, err := blake2b.New(16, h.key)
	if err != nil {
		// key length is validated in NewHasher
		panic(err)
	}
	d.Write([]byte(value))
	return hex.EncodeToString(d.Sum(nil))
}

// MaskDNI keeps the last four digits for operator-facing logs.
func MaskDNI(dni string) string {
	if len(dni) <= 4 {
		return strings.Repeat("*", len(dni))
	}
	return strings.Repeat("*", len(dni)-4) + dni[len(dni)-4:]
}
