package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the caller exceeded its request budget.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Registry errors
const (
	// ErrCodeNotFound indicates the requested agent or resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidDescriptor indicates a registration payload is missing required fields.
	ErrCodeInvalidDescriptor ErrorCode = "INVALID_DESCRIPTOR"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Token acquisition errors
const (
	// ErrCodeAuthFailure indicates the identity provider rejected the request.
	ErrCodeAuthFailure ErrorCode = "AUTH_FAILURE"
	// ErrCodeAuthUnavailable indicates the identity provider could not be reached.
	ErrCodeAuthUnavailable ErrorCode = "AUTH_UNAVAILABLE"
	// ErrCodeAuthTimeout indicates an interactive flow was not completed in time.
	ErrCodeAuthTimeout ErrorCode = "AUTH_TIMEOUT"
	// ErrCodeProviderConfig indicates a provider was configured in a way it refuses to run.
	ErrCodeProviderConfig ErrorCode = "PROVIDER_CONFIGURATION"
)

// Token validation errors
const (
	// ErrCodeUnauthorized indicates the request carries no credentials.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInvalidToken indicates the token could not be parsed or has the wrong issuer.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	// ErrCodeInvalidSignature indicates the token signature did not verify.
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"
	// ErrCodeTokenExpired indicates the token is past its expiry plus grace period.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	// ErrCodeInvalidAudience indicates the token was issued for another audience.
	ErrCodeInvalidAudience ErrorCode = "INVALID_AUDIENCE"
	// ErrCodeInsufficientScope indicates the token lacks the required scope.
	ErrCodeInsufficientScope ErrorCode = "INSUFFICIENT_SCOPE"
	// ErrCodeHTTPSRequired indicates a mutating request arrived over plain HTTP.
	ErrCodeHTTPSRequired ErrorCode = "HTTPS_REQUIRED"
)

// Discovery errors
const (
	// ErrCodeDiscoveryUnreachable indicates a registry or agent could not be queried.
	ErrCodeDiscoveryUnreachable ErrorCode = "DISCOVERY_UNREACHABLE"
	// ErrCodeDiscoveryExhausted indicates no source could resolve the agent.
	ErrCodeDiscoveryExhausted ErrorCode = "DISCOVERY_EXHAUSTED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable:   true,
	ErrCodeConnectionFailed:     true,
	ErrCodeTimeout:              true,
	ErrCodeRateLimited:          true,
	ErrCodeAuthFailure:          true,
	ErrCodeAuthUnavailable:      true,
	ErrCodeAuthTimeout:          true,
	ErrCodeDiscoveryUnreachable: true,
	ErrCodeExternalService:      true,
	ErrCodeInternal:             false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
