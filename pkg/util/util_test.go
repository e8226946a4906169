package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", OrDash(""))
	assert.Equal(t, "x", OrDash("x"))
	assert.Equal(t, "-", JoinOrDash())
	assert.Equal(t, "a, b", JoinOrDash("a", "b"))
	assert.Equal(t, "yes", YesNo(true))
	assert.Equal(t, "-", FormatInt(0))
	assert.Equal(t, "42", FormatInt(42))
}

func TestTruncateURL(t *testing.T) {
	tests := []struct {
		url    string
		maxLen int
		want   string
	}{
		{"https://chatgpt.com/", 40, "https://chatgpt.com/"},
		{"https://chatgpt.com/?q=hello", 20, "https://chatgpt.c..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateURL(tt.url, tt.maxLen))
	}
}

func TestReadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  explain this  \n"), 0o600))

	got, err := ReadTextFile(path)
	require.NoError(t, err)
	assert.Equal(t, "explain this", got)

	_, err = ReadTextFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "failed to read file")
}

func TestReadPipedStdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte("piped text\n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadPipedStdin(f)
	require.NoError(t, err)
	assert.Equal(t, "piped text", got)
}
