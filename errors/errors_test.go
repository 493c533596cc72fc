package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeAuthUnavailable, "idp down", http.StatusServiceUnavailable)
	if !err.Retryable {
		t.Error("AUTH_UNAVAILABLE should be retryable")
	}
}

func TestAppError_NotFound_AgentMessage(t *testing.T) {
	err := NotFound("agent", "calc")
	if err.Message != "Agent calc not registered" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Details["id"] != "calc" {
		t.Errorf("expected id=calc, got %v", err.Details["id"])
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("agent", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
	if !strings.Contains(err.Message, "not found") {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestAppError_Unauthorized_DefaultMessage(t *testing.T) {
	if got := Unauthorized("").Message; got != "Authentication required." {
		t.Errorf("expected default message, got %q", got)
	}
	if got := Unauthorized("bad token").Message; got != "bad token" {
		t.Errorf("expected custom message, got %q", got)
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"InvalidDescriptor", InvalidDescriptor("missing name"), ErrCodeInvalidDescriptor, http.StatusBadRequest, false},
		{"AuthFailure", AuthFailure("client-credentials", "bad secret"), ErrCodeAuthFailure, http.StatusUnauthorized, true},
		{"AuthUnavailable", AuthUnavailable("managed-identity", nil), ErrCodeAuthUnavailable, http.StatusServiceUnavailable, true},
		{"AuthTimeout", AuthTimeout("interactive"), ErrCodeAuthTimeout, http.StatusGatewayTimeout, true},
		{"ProviderConfig", ProviderConfig("scope-only", "refused"), ErrCodeProviderConfig, http.StatusInternalServerError, false},
		{"InvalidToken", InvalidToken(""), ErrCodeInvalidToken, http.StatusUnauthorized, false},
		{"InvalidSignature", InvalidSignature(), ErrCodeInvalidSignature, http.StatusUnauthorized, false},
		{"TokenExpired", TokenExpired(), ErrCodeTokenExpired, http.StatusUnauthorized, false},
		{"InvalidAudience", InvalidAudience("api://registry"), ErrCodeInvalidAudience, http.StatusUnauthorized, false},
		{"InsufficientScope", InsufficientScope("x"), ErrCodeInsufficientScope, http.StatusForbidden, false},
		{"HTTPSRequired", HTTPSRequired(), ErrCodeHTTPSRequired, http.StatusBadRequest, false},
		{"DiscoveryUnreachable", DiscoveryUnreachable("http://r1", nil), ErrCodeDiscoveryUnreachable, http.StatusBadGateway, true},
		{"DiscoveryExhausted", DiscoveryExhausted("tr", nil), ErrCodeDiscoveryExhausted, http.StatusNotFound, false},
		{"ServiceUnavailable", ServiceUnavailable("registry"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{"Timeout", Timeout("probe"), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{"RateLimited", RateLimited(), ErrCodeRateLimited, http.StatusTooManyRequests, true},
		{"ExternalServiceError", ExternalServiceError("idp", nil), ErrCodeExternalService, http.StatusBadGateway, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
			if tc.err.Retryable != IsRetryableCode(tc.code) {
				t.Errorf("constructor and retryable table disagree for %s", tc.code)
			}
		})
	}
}

func TestAppError_DiscoveryExhausted_Attempts(t *testing.T) {
	err := DiscoveryExhausted("tr", map[string]string{"http://r1": "connection refused"})
	attempts, ok := err.Details["attempts"].(map[string]string)
	if !ok {
		t.Fatalf("expected attempts map in details, got %T", err.Details["attempts"])
	}
	if attempts["http://r1"] != "connection refused" {
		t.Errorf("unexpected attempt reason %q", attempts["http://r1"])
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NotFound("agent", "1").WithCause(cause)
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := NotFound("agent", "1").WithDetails(map[string]any{"extra": "info"})
	err.WithDetail("another", "detail")
	if err.Details["extra"] != "info" || err.Details["another"] != "detail" {
		t.Errorf("expected merged details, got %v", err.Details)
	}
	if err.Details["resource"] != "agent" {
		t.Error("expected original details to be preserved")
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	resp := InsufficientScope("agentic_ai_solution").ToResponse()
	if resp.Error.Code != ErrCodeInsufficientScope {
		t.Errorf("expected INSUFFICIENT_SCOPE, got %s", resp.Error.Code)
	}
	if resp.Error.Details["required_scope"] != "agentic_ai_solution" {
		t.Errorf("expected required_scope detail, got %v", resp.Error.Details)
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", TokenExpired())
	if !HasCode(wrapped, ErrCodeTokenExpired) {
		t.Error("expected HasCode to see through wrapping")
	}
	if HasCode(wrapped, ErrCodeInvalidSignature) {
		t.Error("expected HasCode to reject a different code")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("expected HasCode false for plain error")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(AuthUnavailable("x", nil)) {
		t.Error("expected AuthUnavailable to be retryable")
	}
	if IsRetryable(InsufficientScope("x")) {
		t.Error("expected InsufficientScope to not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("expected plain errors to not be retryable")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	orig := NotFound("agent", "1")
	if Wrap(orig) != orig {
		t.Error("Wrap should return the original AppError unchanged")
	}
	if got := Wrap(fmt.Errorf("outer: %w", orig)); got.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", got.Code)
	}

	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected INTERNAL_ERROR wrapping cause, got %+v", got)
	}
}
