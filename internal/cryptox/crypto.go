// Package cryptox implements the symmetric primitive protecting the recovery
// phrase at rest: AES-256-GCM with a fresh random 96-bit IV per message.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/Zet-money/zet-wallet-sub000/internal/common"
)

const (
	// KeySize is the master key length in bytes (AES-256).
	KeySize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 12

	randomIDSize = 32
)

// randReader is a test seam for the system CSPRNG.
var randReader io.Reader = rand.Reader

// MasterKey is an AES-256-GCM key. The zero value is not usable; obtain keys
// from GenerateMasterKey or ImportKey.
type MasterKey struct {
	raw  []byte
	aead cipher.AEAD
}

func newMasterKey(raw []byte) (*MasterKey, error) {
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &MasterKey{raw: raw, aead: aead}, nil
}

// Wipe zeroes the key bytes held by k. The key must not be used afterwards.
func (k *MasterKey) Wipe() {
	if k == nil {
		return
	}
	common.WipeByteArray(k.raw)
	k.aead = nil
}

// GenerateMasterKey returns a fresh random key that can be exported.
func GenerateMasterKey() (*MasterKey, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(randReader, raw); err != nil {
		return nil, fmt.Errorf("%w: reading random key: %v", common.ErrCapability, err)
	}
	return newMasterKey(raw)
}

// EncryptData seals plaintext under key with a newly drawn random IV.
// The IV is never derived from state, so no two calls share one short of a
// 96-bit random collision.
func EncryptData(key *MasterKey, plaintext []byte) (iv, ciphertext []byte, err error) {
	if key == nil || key.aead == nil {
		return nil, nil, fmt.Errorf("%w: nil key", common.ErrInvalidInput)
	}

	iv = make([]byte, IVSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, nil, fmt.Errorf("%w: reading random iv: %v", common.ErrCapability, err)
	}

	ciphertext = key.aead.Seal(nil, iv, plaintext, nil)
	return iv, ciphertext, nil
}

// DecryptData opens ciphertext. Any tampering with iv or ciphertext, or a
// wrong key, yields common.ErrIntegrity and a nil plaintext.
func DecryptData(key *MasterKey, iv, ciphertext []byte) ([]byte, error) {
	if key == nil || key.aead == nil {
		return nil, fmt.Errorf("%w: nil key", common.ErrIntegrity)
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv length %d", common.ErrIntegrity, len(iv))
	}

	plaintext, err := key.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIntegrity, err)
	}
	return plaintext, nil
}

// ExportKey returns a copy of the raw key bytes for persistence.
func ExportKey(key *MasterKey) []byte {
	return append([]byte(nil), key.raw...)
}

// ImportKey rebuilds a key from exported bytes. The input is copied.
func ImportKey(raw []byte) (*MasterKey, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: key length %d", common.ErrIntegrity, len(raw))
	}
	return newMasterKey(append([]byte(nil), raw...))
}

// GenerateRandomID returns 256 random bits, base64url encoded without padding.
func GenerateRandomID() (string, error) {
	b := make([]byte, randomIDSize)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", fmt.Errorf("%w: reading random id: %v", common.ErrCapability, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
