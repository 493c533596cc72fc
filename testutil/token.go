package testutil

import (
	"testing"
	"time"

	"github.com/kbukum/agentmesh/auth/jwt"
)

// Token signs an HS256 token for subject with the given scopes.
func Token(t testing.TB, cfg jwt.SignerConfig, subject string, scopes []string, ttl time.Duration) string {
	t.Helper()
	signer, err := jwt.NewSigner(cfg)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	tok, _, err := signer.Sign(subject, scopes, ttl)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}
