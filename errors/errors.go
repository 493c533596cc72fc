package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Registry ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	msg := fmt.Sprintf("The requested %s was not found.", resource)
	if id != "" {
		details["id"] = id
		msg = fmt.Sprintf("%s %s not registered", titleWord(resource), id)
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: msg,
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// InvalidDescriptor creates a new AppError for a registration payload missing required fields.
func InvalidDescriptor(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidDescriptor, Message: reason,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// --- Token acquisition ---

// AuthFailure creates a new AppError for a rejected token request.
func AuthFailure(provider, reason string) *AppError {
	return &AppError{
		Code: ErrCodeAuthFailure, Message: fmt.Sprintf("Authentication with %s failed: %s", provider, reason),
		HTTPStatus: http.StatusUnauthorized, Retryable: true,
		Details: map[string]any{"provider": provider},
	}
}

// AuthUnavailable creates a new AppError for an unreachable identity provider.
func AuthUnavailable(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeAuthUnavailable, Message: fmt.Sprintf("The %s identity endpoint is unavailable.", provider),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"provider": provider}, Cause: cause,
	}
}

// AuthTimeout creates a new AppError for an interactive flow that was not completed in time.
func AuthTimeout(provider string) *AppError {
	return &AppError{
		Code: ErrCodeAuthTimeout, Message: fmt.Sprintf("The %s sign-in was not completed in time.", provider),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"provider": provider},
	}
}

// ProviderConfig creates a new AppError for a provider that refuses its configuration.
func ProviderConfig(provider, reason string) *AppError {
	return &AppError{
		Code: ErrCodeProviderConfig, Message: reason,
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"provider": provider},
	}
}

// --- Token validation ---

// Unauthorized creates a new AppError for a request without credentials.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// InvalidToken creates a new AppError for a malformed token.
func InvalidToken(reason string) *AppError {
	if reason == "" {
		reason = "Invalid authentication token."
	}
	return &AppError{
		Code: ErrCodeInvalidToken, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// InvalidSignature creates a new AppError for a token whose signature did not verify.
func InvalidSignature() *AppError {
	return &AppError{
		Code: ErrCodeInvalidSignature, Message: "Token signature verification failed.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// TokenExpired creates a new AppError for an expired token.
func TokenExpired() *AppError {
	return &AppError{
		Code: ErrCodeTokenExpired, Message: "Token has expired.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// InvalidAudience creates a new AppError for a token issued to another audience.
func InvalidAudience(expected string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidAudience, Message: "Token audience does not match this service.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
		Details: map[string]any{"expected_audience": expected},
	}
}

// InsufficientScope creates a new AppError for a token lacking the required scope.
func InsufficientScope(required string) *AppError {
	return &AppError{
		Code: ErrCodeInsufficientScope, Message: fmt.Sprintf("Token does not grant the required scope %q.", required),
		HTTPStatus: http.StatusForbidden, Retryable: false,
		Details: map[string]any{"required_scope": required},
	}
}

// HTTPSRequired creates a new AppError for a mutating request over plain HTTP.
func HTTPSRequired() *AppError {
	return &AppError{
		Code: ErrCodeHTTPSRequired, Message: "HTTPS is required for this operation.",
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// --- Discovery ---

// DiscoveryUnreachable creates a new AppError for a source that could not be queried.
func DiscoveryUnreachable(source string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDiscoveryUnreachable, Message: fmt.Sprintf("Discovery source %s is unreachable.", source),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"source": source}, Cause: cause,
	}
}

// DiscoveryExhausted creates a new AppError for an agent no source could resolve.
// attempts maps each consulted source to the reason it did not yield the agent.
func DiscoveryExhausted(agentID string, attempts map[string]string) *AppError {
	details := map[string]any{"agent_id": agentID}
	if len(attempts) > 0 {
		details["attempts"] = attempts
	}
	return &AppError{
		Code: ErrCodeDiscoveryExhausted, Message: fmt.Sprintf("Agent %s could not be discovered from any source.", agentID),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// --- Internal ---

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for a request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// RateLimited creates a new AppError for a caller over its request budget.
func RateLimited() *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests. Please slow down.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// ExternalServiceError creates a new AppError for an error from an external service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
