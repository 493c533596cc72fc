package util

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = []struct {
	suffix string
	factor int64
}{
	{"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
	{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
	{"B", 1},
}

// ParseSize reads a byte size such as "1MB", "512KiB" or "4096". Units are
// binary. Empty, malformed or non-positive input yields defaultBytes.
func ParseSize(s string, defaultBytes int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	factor := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, factor = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.factor
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return defaultBytes
	}
	return n * factor
}

// MaskSecret keeps the first visible characters of a credential and
// replaces the rest with its length, e.g. "eyJhbGciOi…(412)". Values no
// longer than visible are fully hidden.
func MaskSecret(s string, visible int) string {
	if len(s) <= visible {
		return "***"
	}
	return fmt.Sprintf("%s…(%d)", s[:visible], len(s))
}
