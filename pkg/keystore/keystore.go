// Package keystore loads ed25519 keypairs from a directory, indexed by
// key_id = hex(SHA256(raw_public_key_bytes)). The directory is treated as
// read-only by the core after initialization: no load path ever writes back
// to it.
package keystore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ransomeye/core/pkg/rerrors"
	"github.com/ransomeye/core/pkg/signing"
)

// KeyID returns the canonical key id for a raw ed25519 public key.
func KeyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// KeyStore is a read-only, directory-backed source of ed25519 keys.
type KeyStore struct {
	dir string
}

// Open validates that dir exists and is a directory. It does not eagerly
// load keys: public keys are discovered by scanning on LoadPublic/Scan,
// private keys are loaded on demand by LoadPrivate.
func Open(dir string) (*KeyStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "keystore.Open", dir, err)
	}
	if !info.IsDir() {
		return nil, rerrors.New(rerrors.InputRejected, "keystore.Open", dir+" is not a directory", nil)
	}
	return &KeyStore{dir: dir}, nil
}

// LoadPublic scans the directory for a public key file (".pub" PEM
// SubjectPublicKeyInfo, or a raw 32-byte NaCl key file) whose derived key_id
// matches keyID. Any public key file discovered in the directory is
// admissible for verification.
func (k *KeyStore) LoadPublic(keyID string) (ed25519.PublicKey, error) {
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "keystore.LoadPublic", k.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".pub") && !strings.HasSuffix(name, ".rawpub") {
			continue
		}
		path := filepath.Join(k.dir, name)
		pub, err := readPublicKeyFile(path)
		if err != nil {
			continue
		}
		if KeyID(pub) == keyID {
			return pub, nil
		}
	}
	return nil, rerrors.New(rerrors.CryptoFailure, "keystore.LoadPublic", "unknown key_id "+keyID, nil)
}

// LoadPrivate loads the PKCS#8 PEM private key file named "<name>.key" whose
// derived public key id matches keyID. Private key files must be mode 0600;
// any looser permission fails closed.
func (k *KeyStore) LoadPrivate(keyID string) (ed25519.PrivateKey, error) {
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "keystore.LoadPrivate", k.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".key") {
			continue
		}
		path := filepath.Join(k.dir, e.Name())
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().Perm() != 0o600 {
			return nil, rerrors.New(rerrors.CryptoFailure, "keystore.LoadPrivate",
				fmt.Sprintf("%s has mode %#o, require 0600", path, info.Mode().Perm()), nil)
		}
		priv, err := readPrivateKeyFile(path)
		if err != nil {
			continue
		}
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			continue
		}
		if KeyID(pub) == keyID {
			return priv, nil
		}
	}
	return nil, rerrors.New(rerrors.CryptoFailure, "keystore.LoadPrivate", "unknown key_id "+keyID, nil)
}

func readPublicKeyFile(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".rawpub") {
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("raw public key %s has wrong size %d", path, len(raw))
		}
		return ed25519.PublicKey(raw), nil
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pub, ok := pubAny.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an ed25519 public key", path)
	}
	return pub, nil
}

func readPrivateKeyFile(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	privAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	priv, ok := privAny.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an ed25519 private key", path)
	}
	return priv, nil
}

// Resolver adapts a KeyStore to signing.KeyResolver, so the Validator and
// the Router's authority checks can verify records against any key id
// discovered in the directory without the caller pre-loading it.
type Resolver struct {
	ks *KeyStore
}

// NewResolver wraps ks as a signing.KeyResolver.
func NewResolver(ks *KeyStore) *Resolver {
	return &Resolver{ks: ks}
}

func (r *Resolver) Resolve(keyID string) (*signing.Verifier, error) {
	pub, err := r.ks.LoadPublic(keyID)
	if err != nil {
		return nil, err
	}
	return signing.NewVerifier(pub, keyID), nil
}

var _ signing.KeyResolver = (*Resolver)(nil)

// WritePublicPEM and WritePrivatePEM are provided for key-generation
// tooling (cmd/ransomeye-keygen), which is an explicit non-goal of the core
// but needs somewhere idiomatic to live; they enforce the same permission
// contract LoadPrivate checks.
func WritePublicPEM(path string, pub ed25519.PublicKey) error {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return err
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o644)
}

func WritePrivatePEM(path string, priv ed25519.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o600)
}
