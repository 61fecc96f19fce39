package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshKeyHex(t *testing.T) string {
	t.Helper()
	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(ethcrypto.FromECDSA(pk))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keyHex := freshKeyHex(t)

	blob, err := EncryptKey(keyHex, "correct horse battery staple")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), keyHex, "ciphertext must not leak the key")

	got, err := DecryptKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)
}

func TestEncryptKeyAcceptsHexPrefix(t *testing.T) {
	keyHex := freshKeyHex(t)

	blob, err := EncryptKey("0x"+keyHex, "pw")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(freshKeyHex(t), "")
	assert.Error(t, err, "empty password")

	_, err = EncryptKey("not hex", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	assert.ErrorContains(t, err, "32-byte key")
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey(freshKeyHex(t), "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestDecryptKeyRejectsUnknownVersion(t *testing.T) {
	_, err := DecryptKey([]byte(`{"version": 99}`), "pw")
	assert.ErrorContains(t, err, "unsupported version")
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	keyHex := freshKeyHex(t)

	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + keyHex, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)

	_, err = LoadKey(KeyConfig{RawPrivateKey: "zz"})
	assert.Error(t, err)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	keyHex := freshKeyHex(t)
	blob, err := EncryptKey(keyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "signer.key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)
}

func TestLoadKeyRequiresASource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}
