package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	credentials := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(credentials, []byte("  {\"type\":\"service_account\"}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(" \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RANKER_TEST_SECRET", "  from-env  ")
	t.Setenv("RANKER_TEST_EMPTY", "")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{
			name: "file beats value and env",
			src:  Source{Name: "credentials", File: credentials, Value: "inline", Env: "RANKER_TEST_SECRET"},
			want: `{"type":"service_account"}`,
		},
		{
			name: "value beats env",
			src:  Source{Value: " inline ", Env: "RANKER_TEST_SECRET"},
			want: "inline",
		},
		{
			name: "env",
			src:  Source{Env: "RANKER_TEST_SECRET"},
			want: "from-env",
		},
		{
			name:    "empty file",
			src:     Source{Name: "credentials", File: empty},
			wantErr: "is empty",
		},
		{
			name:    "missing file",
			src:     Source{Name: "credentials", File: filepath.Join(dir, "missing")},
			wantErr: "reading credentials from file",
		},
		{
			name:    "empty env",
			src:     Source{Name: "credentials", Env: "RANKER_TEST_EMPTY"},
			wantErr: "RANKER_TEST_EMPTY is empty",
		},
		{
			name:    "nothing configured",
			src:     Source{},
			wantErr: "secret is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	if Redact("  ") != "" {
		t.Fatalf("empty secret must stay empty")
	}
	if Redact("hunter2") != "<redacted>" {
		t.Fatalf("secret must be redacted")
	}
}
