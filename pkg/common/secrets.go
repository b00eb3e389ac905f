package common

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Secrets at rest (cloud access tokens) are sealed with AES-256-GCM.
// Wire format, base64 encoded: salt(64) | iv(16) | tag(16) | ciphertext.
const (
	secretSaltLen  = 64
	secretIVLen    = 16
	secretTagLen   = 16
	secretKeyIters = 100000
)

var ErrSecretFormat = errors.New("malformed encrypted secret")

func deriveSecretKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, secretKeyIters, 32, sha512.New)
}

// EncryptSecret seals plaintext with a key derived from the passphrase.
func EncryptSecret(passphrase, plaintext string) (string, error) {
	salt := make([]byte, secretSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	iv := make([]byte, secretIVLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	block, err := aes.NewCipher(deriveSecretKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, secretIVLen)
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	// Seal appends the tag; reorder to salt|iv|tag|ciphertext
	ct := sealed[:len(sealed)-secretTagLen]
	tag := sealed[len(sealed)-secretTagLen:]
	out := make([]byte, 0, secretSaltLen+secretIVLen+secretTagLen+len(ct))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptSecret opens a value produced by EncryptSecret.
func DecryptSecret(passphrase, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(data) < secretSaltLen+secretIVLen+secretTagLen {
		return "", ErrSecretFormat
	}
	salt := data[:secretSaltLen]
	iv := data[secretSaltLen : secretSaltLen+secretIVLen]
	tag := data[secretSaltLen+secretIVLen : secretSaltLen+secretIVLen+secretTagLen]
	ct := data[secretSaltLen+secretIVLen+secretTagLen:]
	block, err := aes.NewCipher(deriveSecretKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, secretIVLen)
	if err != nil {
		return "", err
	}
	sealed := make([]byte, 0, len(ct)+secretTagLen)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
