package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// ReadFrame reads one text/event-stream frame, without its terminating
// blank line.
func ReadFrame(t testing.TB, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event stream: %v", err)
		}
		if line == "\n" {
			return b.String()
		}
		b.WriteString(line)
	}
}
