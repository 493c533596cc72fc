package encryption

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	for _, alg := range []Algorithm{AESGCM, ChaCha20Poly1305} {
		t.Run(string(alg), func(t *testing.T) {
			s, err := New("correct horse battery staple", alg)
			if err != nil {
				t.Fatal(err)
			}
			if s.Algorithm() != alg {
				t.Errorf("expected %s, got %s", alg, s.Algorithm())
			}

			plain := []byte(`{"token":"eyJhbGciOi..."}`)
			aad := []byte("token-file")
			box, err := s.Seal(plain, aad)
			if err != nil {
				t.Fatal(err)
			}
			if bytes.Contains(box, plain) {
				t.Error("ciphertext contains the plaintext")
			}
			again, _ := s.Seal(plain, aad)
			if bytes.Equal(box, again) {
				t.Error("two seals of the same input should differ")
			}

			got, err := s.Open(box, aad)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("expected %q, got %q", plain, got)
			}

			if _, err := s.Open(box, []byte("other")); err == nil {
				t.Error("expected failure with different additional data")
			}
			box[len(box)-1] ^= 0xff
			if _, err := s.Open(box, aad); err == nil {
				t.Error("expected failure for tampered ciphertext")
			}
		})
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	a, _ := New("key-one", ChaCha20Poly1305)
	b, _ := New("key-two", ChaCha20Poly1305)
	box, err := a.Seal([]byte("secret"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(box, nil); err == nil {
		t.Error("expected failure with the wrong key")
	}
}

func TestOpenMalformed(t *testing.T) {
	s, _ := New("k", AESGCM)
	if _, err := s.Open([]byte("short"), nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestNewRejects(t *testing.T) {
	if _, err := New("", AESGCM); err == nil {
		t.Error("expected error for an empty passphrase")
	}
	if _, err := New("k", "rot13"); err == nil {
		t.Error("expected error for an unknown algorithm")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", ChaCha20Poly1305, false},
		{"chacha20-poly1305", ChaCha20Poly1305, false},
		{"aes-256-gcm", AESGCM, false},
		{"des", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}
