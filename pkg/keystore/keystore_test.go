package keystore_test

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/pkg/keystore"
)

func writeKeyPair(t *testing.T, dir, name string) (ed25519.PublicKey, ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	keyID := keystore.KeyID(pub)
	require.NoError(t, keystore.WritePublicPEM(filepath.Join(dir, keyID+".pub"), pub))
	require.NoError(t, keystore.WritePrivatePEM(filepath.Join(dir, name+".key"), priv))
	return pub, priv, keyID
}

func TestOpenRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err := keystore.Open(file)
	assert.Error(t, err)
}

func TestOpenRejectsMissingDirectory(t *testing.T) {
	_, err := keystore.Open(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestLoadPublicFindsKeyByDerivedID(t *testing.T) {
	dir := t.TempDir()
	pub, _, keyID := writeKeyPair(t, dir, "key")

	ks, err := keystore.Open(dir)
	require.NoError(t, err)

	loaded, err := ks.LoadPublic(keyID)
	require.NoError(t, err)
	assert.Equal(t, pub, loaded)
}

func TestLoadPublicUnknownKeyIDFails(t *testing.T) {
	dir := t.TempDir()
	writeKeyPair(t, dir, "key")

	ks, err := keystore.Open(dir)
	require.NoError(t, err)

	_, err = ks.LoadPublic("0000000000000000000000000000000000000000000000000000000000000")
	assert.Error(t, err)
}

func TestLoadPrivateFindsKeyByDerivedID(t *testing.T) {
	dir := t.TempDir()
	_, priv, keyID := writeKeyPair(t, dir, "key")

	ks, err := keystore.Open(dir)
	require.NoError(t, err)

	loaded, err := ks.LoadPrivate(keyID)
	require.NoError(t, err)
	assert.Equal(t, priv, loaded)
}

func TestLoadPrivateRejectsLoosePermissions(t *testing.T) {
	dir := t.TempDir()
	_, _, keyID := writeKeyPair(t, dir, "key")
	require.NoError(t, os.Chmod(filepath.Join(dir, "key.key"), 0o644))

	ks, err := keystore.Open(dir)
	require.NoError(t, err)

	_, err = ks.LoadPrivate(keyID)
	assert.Error(t, err)
}

func TestResolverAdaptsKeyStoreToSigningKeyResolver(t *testing.T) {
	dir := t.TempDir()
	_, _, keyID := writeKeyPair(t, dir, "key")

	ks, err := keystore.Open(dir)
	require.NoError(t, err)
	resolver := keystore.NewResolver(ks)

	v, err := resolver.Resolve(keyID)
	require.NoError(t, err)
	assert.Equal(t, keyID, v.KeyID)
}

func TestKeyIDIsDeterministicForSamePublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	assert.Equal(t, keystore.KeyID(pub), keystore.KeyID(pub))
}
