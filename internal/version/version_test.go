package version

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReader_Version(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		expected string
	}{
		{"JSONマニフェスト", "package.json", `{"name":"fibi","version":"1.4.2","private":true}`, "1.4.2"},
		{"YAMLマニフェスト", "manifest.yaml", "name: fibi\nversion: 2.0.0-rc.1\n", "2.0.0-rc.1"},
		{"前後の空白は除去", "package.json", `{"version":"  3.1.0 "}`, "3.1.0"},
		{"versionが空", "package.json", `{"version":""}`, Fallback},
		{"versionなし", "package.json", `{"name":"fibi"}`, Fallback},
		{"壊れたJSON", "package.json", `{"version":`, Fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(writeManifest(t, tt.file, tt.content), nil)
			assert.Equal(t, tt.expected, r.Version())
		})
	}
}

func TestReader_MissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Equal(t, Fallback, r.Version())
}

func TestReader_RereadsOnEveryCall(t *testing.T) {
	path := writeManifest(t, "package.json", `{"version":"1.0.0"}`)
	r := NewReader(path, nil)
	require.Equal(t, "1.0.0", r.Version())

	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1.0.1"}`), 0o644))
	assert.Equal(t, "1.0.1", r.Version())
}
