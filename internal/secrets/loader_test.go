package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte(" \n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	t.Setenv("BIDRADAR_TEST_SECRET", " from-env ")

	tests := []struct {
		name    string
		src     Source
		expect  string
		wantErr string
	}{
		{
			name:   "file wins",
			src:    Source{Name: "g2b key", File: keyFile, Env: "BIDRADAR_TEST_SECRET", Value: "inline"},
			expect: "from-file",
		},
		{
			name:   "env wins over inline",
			src:    Source{Name: "g2b key", Env: "BIDRADAR_TEST_SECRET", Value: "inline"},
			expect: "from-env",
		},
		{
			name:   "inline fallback",
			src:    Source{Name: "g2b key", Env: "BIDRADAR_UNSET_SECRET", Value: " inline "},
			expect: "inline",
		},
		{
			name:    "empty file",
			src:     Source{Name: "g2b key", File: emptyFile},
			wantErr: "is empty",
		},
		{
			name:    "missing file",
			src:     Source{Name: "g2b key", File: filepath.Join(dir, "missing")},
			wantErr: "reading g2b key from file",
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
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
