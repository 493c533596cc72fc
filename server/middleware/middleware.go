package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/kbukum/agentmesh/errors"
)

// Middleware wraps an http.Handler. It is applied at the server handler
// level so it covers every route on the mux, Gin or not.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware. The first in the list is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// WriteError renders err as the JSON error envelope. Non-AppErrors become
// INTERNAL_ERROR.
func WriteError(w http.ResponseWriter, err error) {
	appErr := apperrors.Wrap(err)
	if challenge := AuthChallenge(appErr); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(appErr.ToResponse())
}

// AuthChallenge returns the WWW-Authenticate value for 401 and 403 errors,
// or "" for everything else.
func AuthChallenge(err *apperrors.AppError) string {
	switch err.HTTPStatus {
	case http.StatusUnauthorized:
		if err.Code == apperrors.ErrCodeUnauthorized {
			return "Bearer"
		}
		return `Bearer error="invalid_token"`
	case http.StatusForbidden:
		if scope, ok := err.Details["required_scope"].(string); ok {
			return fmt.Sprintf(`Bearer error="insufficient_scope", scope=%q`, scope)
		}
		return `Bearer error="insufficient_scope"`
	}
	return ""
}
