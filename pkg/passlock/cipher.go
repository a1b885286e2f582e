package passlock

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	NonceSize = 12
	TagSize   = 16
)

// Nonce is a per-payload random value. A Nonce must never be used twice with the same Key.
type Nonce []byte

// Encrypted is ciphertext with the authentication tag appended.
type Encrypted []byte

// Plaintext is an unencrypted payload.
type Plaintext []byte

// Suite identifies the AEAD construction used to encrypt a payload.
type Suite uint8

const (
	SuiteAES256GCM Suite = iota + 1
	SuiteChaCha20Poly1305
)

func (s Suite) String() string {
	switch s {
	case SuiteAES256GCM:
		return "aes-256-gcm"
	case SuiteChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("suite(%d)", uint8(s))
	}
}

func (s Suite) newAEAD(key Key) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	switch s {
	case SuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, s)
	}
}

// Seal encrypts and authenticates data with the key and nonce, returning the ciphertext with the tag appended.
// The associated data is authenticated but not encrypted, and may be nil.
func (s Suite) Seal(key Key, nonce Nonce, data Plaintext, associated []byte) (Encrypted, error) {
	aead, err := s.newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidNonce, len(nonce), aead.NonceSize())
	}
	return aead.Seal(nil, nonce, data, associated), nil
}

// Open verifies and decrypts data produced by Seal.
// Nothing but verified plaintext is ever returned. Any authentication failure is reported as ErrIntegrity.
func (s Suite) Open(key Key, nonce Nonce, data Encrypted, associated []byte) (Plaintext, error) {
	aead, err := s.newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidNonce, len(nonce), aead.NonceSize())
	}
	if len(data) < aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext shorter than the authentication tag", ErrIntegrity)
	}
	plain, err := aead.Open(nil, nonce, data, associated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if plain == nil {
		plain = Plaintext{}
	}
	return plain, nil
}

// Lock encrypts data with AES-256-GCM.
func Lock(key Key, nonce Nonce, data Plaintext, associated []byte) (Encrypted, error) {
	return SuiteAES256GCM.Seal(key, nonce, data, associated)
}

// Unlock decrypts data produced by Lock.
func Unlock(key Key, nonce Nonce, data Encrypted, associated []byte) (Plaintext, error) {
	return SuiteAES256GCM.Open(key, nonce, data, associated)
}
