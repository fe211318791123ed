package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnvParsesAndRespectsExistingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `
# comment line
PLAIN=value
export EXPORTED=shell-style
QUOTED="line one\nline two"
SINGLE='kept $literal'
INLINE=value # trailing comment
EXISTING=from-file
MALFORMED LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	for _, key := range []string{"PLAIN", "EXPORTED", "QUOTED", "SINGLE", "INLINE", "EXISTING"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("EXISTING", "from-process")

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "value", os.Getenv("PLAIN"))
	assert.Equal(t, "shell-style", os.Getenv("EXPORTED"))
	assert.Equal(t, "line one\nline two", os.Getenv("QUOTED"))
	assert.Equal(t, "kept $literal", os.Getenv("SINGLE"))
	assert.Equal(t, "value", os.Getenv("INLINE"))
	assert.Equal(t, "from-process", os.Getenv("EXISTING"))
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), ""))
}
