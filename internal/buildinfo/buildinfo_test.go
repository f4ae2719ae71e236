package buildinfo

import (
	"strings"
	"testing"
)

func TestShortPrefersVersion(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "v1.2.0", Commit: "abc"}, "v1.2.0"},
		{Info{Version: "dev", Commit: "abc123"}, "abc123"},
		{Info{Version: "dev", Commit: "unknown"}, "dev"},
	}
	for _, tt := range tests {
		if got := tt.info.Short(); got != tt.want {
			t.Fatalf("%+v.Short() = %q, want %q", tt.info, got, tt.want)
		}
	}
}

func TestReadFillsGoVersion(t *testing.T) {
	info := Read()
	if !strings.HasPrefix(info.Go, "go") {
		t.Fatalf("Read().Go = %q, want a go version", info.Go)
	}
	if !strings.HasPrefix(info.String(), "strand ") {
		t.Fatalf("String() = %q", info.String())
	}
}
