package version

import "testing"

func TestGet(t *testing.T) {
	v := Get()
	if v.Version != Version {
		t.Errorf("expected %q, got %q", Version, v.Version)
	}
	if Get() != v {
		t.Error("expected stable result across calls")
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "1.2.0"}, "1.2.0"},
		{Info{Version: "1.2.0", GitCommit: "abc1234"}, "1.2.0 (abc1234)"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
