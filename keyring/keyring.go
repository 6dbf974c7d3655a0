// Package keyring gives a validator identity a life longer than one
// simulation process. A node's ed25519 key pair is normally derived
// on the fly from (Simulation.Seed, ID) for reproducibility, but an
// operator restarting the same validator identity across separate
// invocations — e.g. to resume a long-running scenario with the same
// node after a crash — needs that one key to survive on disk, and
// not in the clear. This package is that one key's envelope.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/tolelom/bftsim/crypto"
)

// kdfIterations is applied to every identity this package writes.
// Bumping it only affects keys saved after the change — identityFile
// carries its own record of how many rounds were used so an older,
// lower-iteration identity already on disk keeps opening correctly.
const kdfIterations = 480_000

// identityFile is the on-disk envelope for one validator's private
// key. KDFIterations is stored rather than assumed so the work factor
// can be raised in a future run without invalidating identities saved
// under the old default.
type identityFile struct {
	PubKeyHex     string `json:"validator_pubkey"`
	KDFIterations int    `json:"kdf_iterations"`
	SaltHex       string `json:"kdf_salt"`
	NonceHex      string `json:"seal_nonce"`
	SealedKeyHex  string `json:"sealed_key"`
}

// SaveKey writes priv to path, sealed under a key derived from
// passphrase. The file is not portable to another passphrase or
// machine without it; losing the passphrase means losing the
// validator identity, not just the file.
func SaveKey(path, passphrase string, priv crypto.PrivateKey) error {
	salt, err := randomBytes(16)
	if err != nil {
		return fmt.Errorf("keyring: generate salt: %w", err)
	}
	aead, err := newAEAD(passphrase, salt, kdfIterations)
	if err != nil {
		return fmt.Errorf("keyring: build cipher: %w", err)
	}
	nonce, err := randomBytes(aead.NonceSize())
	if err != nil {
		return fmt.Errorf("keyring: generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, priv, nil)

	file := identityFile{
		PubKeyHex:     priv.Public().Hex(),
		KDFIterations: kdfIterations,
		SaltHex:       hex.EncodeToString(salt),
		NonceHex:      hex.EncodeToString(nonce),
		SealedKeyHex:  hex.EncodeToString(sealed),
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("keyring: encode identity file: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// LoadKey recovers the validator key stored at path under passphrase.
func LoadKey(path, passphrase string) (crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyring: read %s: %w", path, err)
	}
	var file identityFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("keyring: decode %s: %w", path, err)
	}

	salt, err := hex.DecodeString(file.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("keyring: malformed salt in %s: %w", path, err)
	}
	nonce, err := hex.DecodeString(file.NonceHex)
	if err != nil {
		return nil, fmt.Errorf("keyring: malformed nonce in %s: %w", path, err)
	}
	sealed, err := hex.DecodeString(file.SealedKeyHex)
	if err != nil {
		return nil, fmt.Errorf("keyring: malformed sealed key in %s: %w", path, err)
	}

	aead, err := newAEAD(passphrase, salt, file.KDFIterations)
	if err != nil {
		return nil, fmt.Errorf("keyring: build cipher: %w", err)
	}
	opened, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("keyring: %s did not open — wrong passphrase or the file is damaged", path)
	}
	return crypto.PrivateKey(opened), nil
}

// newAEAD derives a 256-bit key from passphrase and salt with
// PBKDF2-HMAC-SHA256 and wraps it in AES-GCM.
func newAEAD(passphrase string, salt []byte, iterations int) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}
