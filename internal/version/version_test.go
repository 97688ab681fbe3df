package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion == "" || info.Platform == "" {
		t.Errorf("runtime fields empty: %+v", info)
	}
	if !strings.HasPrefix(info.Long(), "edgelatency "+Version) {
		t.Errorf("Long() = %q", info.Long())
	}
}

func TestShortCommit(t *testing.T) {
	tests := map[string]string{
		"":                                         "",
		"abc123":                                   "abc123",
		"0123456789abcdef0123456789abcdef01234567": "0123456789ab",
	}
	for in, want := range tests {
		if got := shortCommit(in); got != want {
			t.Errorf("shortCommit(%q) = %q, want %q", in, got, want)
		}
	}
}
