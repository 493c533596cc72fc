package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestBearerAuth(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://registry.internal", nil)
	if err := BearerAuth("static-token").apply(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer static-token" {
		t.Errorf("got %q", got)
	}
}

func TestBearerSource(t *testing.T) {
	calls := 0
	auth := BearerSource(func(ctx context.Context) (string, error) {
		calls++
		return "fresh-token", nil
	})
	req, _ := http.NewRequest(http.MethodGet, "http://registry.internal", nil)
	if err := auth.apply(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer fresh-token" || calls != 1 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestBearerSourceError(t *testing.T) {
	auth := BearerSource(func(ctx context.Context) (string, error) {
		return "", errors.New("authority down")
	})
	req, _ := http.NewRequest(http.MethodGet, "http://registry.internal", nil)
	if err := auth.apply(context.Background(), req); err == nil {
		t.Fatal("expected token error")
	}
}

func TestNilAuth(t *testing.T) {
	var auth *AuthConfig
	req, _ := http.NewRequest(http.MethodGet, "http://registry.internal", nil)
	if err := auth.apply(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("nil auth should not set Authorization")
	}
}
