// Package signing signs and verifies canonical byte images with ed25519,
// following the excluded-field canonicalization contract used throughout
// the trust spine (signature/key_id/immutable_hash/ledger_entry_id never
// contribute to the bytes that are signed or hashed).
package signing

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/ransomeye/core/pkg/rerrors"
)

// Signer signs canonical byte images with a single ed25519 private key.
type Signer struct {
	priv  ed25519.PrivateKey
	KeyID string
}

// NewSigner wraps an already-loaded private key (typically from
// pkg/keystore) with its key id.
func NewSigner(priv ed25519.PrivateKey, keyID string) *Signer {
	return &Signer{priv: priv, KeyID: keyID}
}

// Sign returns the base64 standard encoding of the 64-byte ed25519
// signature over data.
func (s *Signer) Sign(data []byte) string {
	sig := ed25519.Sign(s.priv, data)
	return base64.StdEncoding.EncodeToString(sig)
}

// Verifier verifies signatures against a single ed25519 public key.
type Verifier struct {
	pub   ed25519.PublicKey
	KeyID string
}

// NewVerifier wraps an already-loaded public key with its key id.
func NewVerifier(pub ed25519.PublicKey, keyID string) *Verifier {
	return &Verifier{pub: pub, KeyID: keyID}
}

// Verify returns nil on a valid signature, or a *rerrors.Error of kind
// CryptoFailure describing exactly why verification failed. It never
// returns nil on a parse failure.
func (v *Verifier) Verify(data []byte, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return rerrors.New(rerrors.CryptoFailure, "signing.Verify", "malformed base64 signature", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return rerrors.New(rerrors.CryptoFailure, "signing.Verify", "signature has wrong length", nil)
	}
	if !ed25519.Verify(v.pub, data, sig) {
		return rerrors.New(rerrors.CryptoFailure, "signing.Verify", "signature does not verify", nil)
	}
	return nil
}

// KeyResolver looks up a Verifier by key id, typically backed by a
// pkg/keystore.KeyStore. The resolved error distinguishes "unknown key id"
// (rerrors.CryptoFailure) from any other failure to load.
type KeyResolver interface {
	Resolve(keyID string) (*Verifier, error)
}

// VerifyWithResolver verifies data against the signature's advertised key
// id, resolving the verifier lazily. Used by the Validator and anywhere the
// signer of a record isn't known ahead of time.
func VerifyWithResolver(r KeyResolver, keyID string, data []byte, signatureB64 string) error {
	v, err := r.Resolve(keyID)
	if err != nil {
		return rerrors.New(rerrors.CryptoFailure, "signing.VerifyWithResolver", "unknown key_id "+keyID, err)
	}
	return v.Verify(data, signatureB64)
}
