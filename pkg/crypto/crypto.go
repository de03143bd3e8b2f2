// Package crypto provides optional authenticated encryption for memory
// content at the store boundary. The engine always works with plaintext;
// sealing and opening happen in the store decorator.
//
// Sealed blob layout: [16-byte salt][12-byte nonce][ciphertext + 16-byte tag],
// AES-256-GCM with an Argon2id-derived key. At the string level the blob is
// base64-encoded behind a version prefix so plaintext and sealed content can
// coexist in one column.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32

	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
)

// envelopePrefix marks a sealed string value.
const envelopePrefix = "enc:v1:"

var (
	// ErrNoKey is returned when opening sealed content without a configured key.
	ErrNoKey = errors.New("encrypted content but no encryption key configured")

	// ErrDecrypt is returned when a sealed blob cannot be authenticated,
	// usually because the key is wrong or the blob is corrupt.
	ErrDecrypt = errors.New("failed to decrypt content")
)

// Cipher seals and opens content with a passphrase-derived key.
// A Cipher built from an empty passphrase is disabled: Seal passes content
// through unchanged and Open fails on sealed input.
type Cipher struct {
	passphrase string
}

// New creates a Cipher. An empty or whitespace-only passphrase disables
// encryption.
func New(passphrase string) *Cipher {
	return &Cipher{passphrase: strings.TrimSpace(passphrase)}
}

// Enabled reports whether a key is configured.
func (c *Cipher) Enabled() bool {
	return c != nil && c.passphrase != ""
}

// deriveKey stretches the passphrase into a 256-bit key with Argon2id.
func (c *Cipher) deriveKey(salt []byte) []byte {
	return argon2.IDKey([]byte(c.passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
}

// Encrypt seals plaintext into a salt||nonce||ciphertext blob.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNoKey
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	blob := make([]byte, 0, saltSize+nonceSize+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNoKey
	}
	if len(blob) < saltSize+nonceSize+1 {
		return nil, ErrDecrypt
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	ciphertext := blob[saltSize+nonceSize:]

	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// IsSealed reports whether a stored string carries the sealed-content prefix.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, envelopePrefix)
}

// Seal encrypts a content string for storage. With encryption disabled the
// content is returned unchanged.
func (c *Cipher) Seal(content string) (string, error) {
	if !c.Enabled() {
		return content, nil
	}
	blob, err := c.Encrypt([]byte(content))
	if err != nil {
		return "", err
	}
	return envelopePrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// Open reverses Seal. Unsealed content passes through unchanged, so stores
// holding a mix of plaintext and sealed records read correctly. Sealed
// content without a configured key fails with ErrNoKey.
func (c *Cipher) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	if !c.Enabled() {
		return "", ErrNoKey
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, envelopePrefix))
	if err != nil {
		return "", ErrDecrypt
	}
	plaintext, err := c.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
