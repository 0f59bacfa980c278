package version

import (
	"strings"
	"testing"
	"time"
)

func saveAndRestore() func() {
	v, c, b := Version, GitCommit, BuildTime
	return func() {
		Version, GitCommit, BuildTime = v, c, b
	}
}

func TestGet_Stamped(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	GitCommit = "abcdef0123456"
	BuildTime = "2024-01-15T10:30:00Z"

	info := Get()
	if info.Version != "1.2.0" {
		t.Errorf("expected 1.2.0, got %q", info.Version)
	}
	if info.GitCommit != "abcdef0" {
		t.Errorf("expected commit shortened to abcdef0, got %q", info.GitCommit)
	}
	if !info.BuildDate.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected build date %v", info.BuildDate)
	}
}

func TestInfo_String(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"bare", Info{Version: "dev"}, "dev"},
		{"commit", Info{Version: "1.0.0", GitCommit: "abc1234"}, "1.0.0 (abc1234)"},
		{"dirty", Info{Version: "1.0.0", GitCommit: "abc1234", Dirty: true}, "1.0.0 (abc1234-dirty)"},
		{"date", Info{Version: "1.0.0", BuildDate: date}, "1.0.0 (built 2024-03-01)"},
		{"all", Info{Version: "1.0.0", GitCommit: "abc1234", BuildDate: date}, "1.0.0 (abc1234, built 2024-03-01)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfo_Fields(t *testing.T) {
	f := Info{Version: "1.0.0", GitCommit: "abc1234"}.Fields()
	if f["version"] != "1.0.0" || f["commit"] != "abc1234" {
		t.Errorf("unexpected fields %v", f)
	}
	if _, ok := f["go_version"]; ok {
		t.Error("empty go_version should be omitted")
	}
}

func TestBanner(t *testing.T) {
	defer saveAndRestore()()
	Version = "9.9.9"
	if b := Banner("stagedigest"); !strings.HasPrefix(b, "stagedigest 9.9.9") {
		t.Errorf("unexpected banner %q", b)
	}
}
