package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tolelom/bftsim/canon"
)

// Hash returns the lowercase hex SHA-256 of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashValue canonically encodes v and returns its hex SHA-256. This is
// the basis for both the state commitment and the block hash.
func HashValue(v canon.Value) string {
	return Hash(canon.Encode(v))
}
