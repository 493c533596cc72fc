// Package validation checks registration payloads.
//
// Struct tags cover the common cases; FieldErrors collects checks that
// depend on more than one field. Both produce an
// INVALID_DESCRIPTOR AppError whose details list the failing fields.
//
//	type Registration struct {
//	    BaseURL string `json:"base_url" validate:"httpurl"`
//	}
//	err := validation.Validate(req)
//
//	var fe validation.FieldErrors
//	fe.Check(validation.IsHTTPURL(u), "url", "must be an absolute http(s) URL")
//	err := fe.Err()
package validation
