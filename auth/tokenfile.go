package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kbukum/agentmesh/encryption"
)

var tokenFileAAD = []byte("agentmesh token file v1")

type storedCredential struct {
	Token     string       `json:"token"`
	Scopes    []string     `json:"scopes"`
	IssuedAt  time.Time    `json:"issued_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Provider  ProviderKind `json:"provider"`
	Identity  string       `json:"identity"`
}

// TokenFile persists one credential, encrypted, so a user signed in through
// the device flow is not prompted again until the token expires.
type TokenFile struct {
	path   string
	sealer *encryption.Sealer
}

// NewTokenFile opens a token file at path sealed with passphrase.
func NewTokenFile(path, passphrase string, alg encryption.Algorithm) (*TokenFile, error) {
	if path == "" {
		return nil, errors.New("auth: token file path is empty")
	}
	s, err := encryption.New(passphrase, alg)
	if err != nil {
		return nil, err
	}
	return &TokenFile{path: path, sealer: s}, nil
}

// Path is where the file lives.
func (f *TokenFile) Path() string { return f.path }

// Load returns the stored credential when it belongs to identity, covers
// scopes and is unexpired at now. A missing file yields (nil, nil).
func (f *TokenFile) Load(identity string, scopes []string, now time.Time) (*Credential, error) {
	box, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: read token file: %w", err)
	}
	plain, err := f.sealer.Open(box, tokenFileAAD)
	if err != nil {
		return nil, fmt.Errorf("auth: token file %s: %w", f.path, err)
	}
	var sc storedCredential
	if err := json.Unmarshal(plain, &sc); err != nil {
		return nil, fmt.Errorf("auth: decode token file: %w", err)
	}

	cred := &Credential{
		Token:     sc.Token,
		Scopes:    sc.Scopes,
		IssuedAt:  sc.IssuedAt,
		ExpiresAt: sc.ExpiresAt,
		Provider:  sc.Provider,
	}
	if sc.Identity != identity || cred.Expired(now) {
		return nil, nil
	}
	for _, s := range scopes {
		if !slices.Contains(cred.Scopes, s) {
			return nil, nil
		}
	}
	return cred, nil
}

// Save replaces the file with cred. The write goes through a temporary file
// in the same directory, readable only by the owner.
func (f *TokenFile) Save(identity string, cred *Credential) error {
	plain, err := json.Marshal(storedCredential{
		Token:     cred.Token,
		Scopes:    cred.Scopes,
		IssuedAt:  cred.IssuedAt,
		ExpiresAt: cred.ExpiresAt,
		Provider:  cred.Provider,
		Identity:  identity,
	})
	if err != nil {
		return err
	}
	box, err := f.sealer.Seal(plain, tokenFileAAD)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("auth: token file dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("auth: token file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(box); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: token file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// Remove deletes the file. Removing a missing file is not an error.
func (f *TokenFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("auth: remove token file: %w", err)
	}
	return nil
}
