// Package encryption seals small secrets at rest, such as the token file
// written by the interactive sign-in flow.
//
// A Sealer is built from a passphrase; the passphrase is hashed with
// SHA-256 into a 256-bit key for the chosen AEAD:
//
//	s, err := encryption.New(passphrase, encryption.ChaCha20Poly1305)
//	box, err := s.Seal(plaintext, []byte("token-file"))
//	plaintext, err := s.Open(box, []byte("token-file"))
//
// The additional data is authenticated but not stored; Open fails unless it
// is given the same bytes Seal was.
package encryption
