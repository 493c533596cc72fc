// Package errors defines AppError, the error type returned by every layer of
// the agent registry.
//
// Codes map one-to-one onto HTTP statuses and a retryable flag, so callers
// decide whether to retry by inspecting the error rather than its message:
//
//	if errors.HasCode(err, errors.ErrCodeNotFound) { ... }
//	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
package errors
