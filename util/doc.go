// Package util holds small parsing and redaction helpers shared by the
// server middleware and the token inspector.
package util
