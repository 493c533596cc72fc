package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names a supported AEAD.
type Algorithm string

const (
	AESGCM           Algorithm = "aes-256-gcm"
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// ErrMalformed is returned by Open for input too short to hold a nonce.
var ErrMalformed = errors.New("encryption: malformed ciphertext")

// ParseAlgorithm maps a configuration value to an Algorithm. Empty selects
// ChaCha20Poly1305.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", ChaCha20Poly1305:
		return ChaCha20Poly1305, nil
	case AESGCM:
		return AESGCM, nil
	default:
		return "", fmt.Errorf("encryption: unknown algorithm %q", s)
	}
}

// Sealer encrypts and authenticates byte slices. Output is nonce||ciphertext.
type Sealer struct {
	alg  Algorithm
	aead cipher.AEAD
}

// New derives a key from passphrase and builds a Sealer for alg.
func New(passphrase string, alg Algorithm) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("encryption: empty passphrase")
	}
	key := sha256.Sum256([]byte(passphrase))

	var (
		aead cipher.AEAD
		err  error
	)
	switch alg {
	case ChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key[:])
	case AESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key[:]); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	default:
		return nil, fmt.Errorf("encryption: unknown algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: %s: %w", alg, err)
	}
	return &Sealer{alg: alg, aead: aead}, nil
}

// Algorithm reports which AEAD the sealer uses.
func (s *Sealer) Algorithm() Algorithm { return s.alg }

// Seal encrypts plaintext under a fresh random nonce, binding aad.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open reverses Seal. It fails if the data was altered, the key differs or
// aad does not match.
func (s *Sealer) Open(box, aad []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(box) < n+s.aead.Overhead() {
		return nil, ErrMalformed
	}
	plaintext, err := s.aead.Open(nil, box[:n], box[n:], aad)
	if err != nil {
		return nil, fmt.Errorf("encryption: open: %w", err)
	}
	return plaintext, nil
}
