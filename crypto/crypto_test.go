package crypto

import (
	"testing"

	"github.com/tolelom/bftsim/canon"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	payload := canon.Map{"key": "A/foo", "value": "bar", "nonce": uint64(0)}
	sig := Sign(priv, ContextTx, payload)
	if err := Verify(pub, ContextTx, payload, sig); err != nil {
		t.Fatalf("valid signature failed to verify: %v", err)
	}
}

func TestForgedSignatureRejected(t *testing.T) {
	_, alicePub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	bobPriv, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	payload := canon.Map{"sender": "A", "key": "A/foo", "value": "bar", "nonce": uint64(0)}
	bobSig := Sign(bobPriv, ContextTx, payload)
	if err := Verify(alicePub, ContextTx, payload, bobSig); err == nil {
		t.Fatal("verify succeeded for a signature produced by a different key")
	}
}

func TestContextSeparation(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	payload := canon.Map{"height": uint64(1), "block_hash": "deadbeef"}
	sig := Sign(priv, ContextTx, payload)

	if err := Verify(pub, ContextTx, payload, sig); err != nil {
		t.Fatalf("signature should verify under its own context: %v", err)
	}
	if err := Verify(pub, ContextHeader, payload, sig); err == nil {
		t.Fatal("signature verified under HEADER context, want failure")
	}
	if err := Verify(pub, ContextVote, payload, sig); err == nil {
		t.Fatal("signature verified under VOTE context, want failure")
	}
}

func TestTamperingInvalidatesSignature(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	payload := canon.Map{"value": "100"}
	sig := Sign(priv, ContextTx, payload)

	tampered := canon.Map{"value": "999"}
	if err := Verify(pub, ContextTx, tampered, sig); err == nil {
		t.Fatal("tampered payload verified, want failure")
	}
}

func TestDeriveKeyPairDeterministic(t *testing.T) {
	priv1, pub1 := DeriveKeyPair("node0")
	priv2, pub2 := DeriveKeyPair("node0")
	if priv1.Hex() != priv2.Hex() || pub1.Hex() != pub2.Hex() {
		t.Fatal("DeriveKeyPair is not deterministic for the same seed")
	}
	_, pub3 := DeriveKeyPair("node1")
	if pub1.Hex() == pub3.Hex() {
		t.Fatal("different seeds produced the same key pair")
	}
}

func TestPubKeyFromHexRoundTrip(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := PubKeyFromHex(pub.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Hex() != pub.Hex() {
		t.Fatal("round trip mismatch")
	}
	if _, err := PubKeyFromHex("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if _, err := PubKeyFromHex("ab"); err == nil {
		t.Fatal("expected error for wrong-length key")
	}
}
