package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tolelom/bftsim/canon"
)

// Sign signs payload, canonically encoded and prefixed with ctx, and
// returns a hex-encoded signature.
func Sign(priv PrivateKey, ctx Context, payload canon.Value) string {
	full := signedBytes(ctx, payload)
	sig := ed25519.Sign(ed25519.PrivateKey(priv), full)
	return hex.EncodeToString(sig)
}

// Verify checks a hex-encoded signature against payload under ctx. A
// signature produced under a different context, or over a different
// payload, fails verification.
func Verify(pub PublicKey, ctx Context, payload canon.Value, sigHex string) error {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("invalid public key length")
	}
	full := signedBytes(ctx, payload)
	if !ed25519.Verify(ed25519.PublicKey(pub), full, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

func signedBytes(ctx Context, payload canon.Value) []byte {
	full := make([]byte, 0, len(ctx)+64)
	full = append(full, []byte(ctx)...)
	full = append(full, canon.Encode(payload)...)
	return full
}
