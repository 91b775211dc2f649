package version

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		commit      string
		vcs         map[string]string
		wantVersion string
		wantCommit  string
		wantBuilt   string
	}{
		{
			name:        "ldflags win",
			version:     "v1.0.0",
			commit:      "abc1234",
			vcs:         map[string]string{"vcs.revision": "ffffffffffff"},
			wantVersion: "v1.0.0",
			wantCommit:  "abc1234",
		},
		{
			name: "vcs stamp",
			vcs: map[string]string{
				"vcs.revision": "0123456789abcdef",
				"vcs.modified": "true",
				"vcs.time":     "2026-03-01T10:00:00Z",
			},
			wantVersion: "dev-20260301",
			wantCommit:  "0123456-dirty",
			wantBuilt:   "2026-03-01T10:00:00Z",
		},
		{
			name:        "nothing known",
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.version, tt.commit, tt.vcs)
			if got.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", got.Version, tt.wantVersion)
			}
			if got.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", got.Commit, tt.wantCommit)
			}
			if got.BuildTime != tt.wantBuilt {
				t.Errorf("BuildTime = %q, want %q", got.BuildTime, tt.wantBuilt)
			}
			if got.Protocol != HostProtocolVersion {
				t.Errorf("Protocol = %d, want %d", got.Protocol, HostProtocolVersion)
			}
		})
	}
}

func TestFull(t *testing.T) {
	if got := Full(); !strings.Contains(got, "commit:") {
		t.Errorf("Full() = %q, want commit", got)
	}
	if s := Get().String(); !strings.HasPrefix(s, "essp ") {
		t.Errorf("String() = %q", s)
	}
}
