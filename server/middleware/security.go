package middleware

import (
	"net/http"
	"strings"

	"github.com/kbukum/agentmesh/auth/authctx"
	apperrors "github.com/kbukum/agentmesh/errors"
)

// BearerToken copies the Authorization bearer token, when present, into
// the request context. It never rejects; the registry gate decides.
func BearerToken() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok, ok := ParseBearer(r.Header.Get("Authorization")); ok {
				r = r.WithContext(authctx.WithToken(r.Context(), tok))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireHTTPS refuses mutating requests that did not arrive over TLS.
// A proxy-terminated connection counts when X-Forwarded-Proto is https.
func RequireHTTPS(enabled bool) Middleware {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isMutating(r.Method) && !IsSecure(r) {
				WriteError(w, apperrors.HTTPSRequired())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsSecure reports whether r arrived over TLS.
func IsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
