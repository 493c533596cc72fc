// Package version exposes build information for the registry banner,
// the /version endpoint and the --version flag.
package version
