package utils

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitEnvironmentVariables(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, InitEnvironmentVariables(t.TempDir()))
	})

	t.Run("loads development file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DEV_ENV_FILENAME), []byte("ANALYTICS_SIM_TEST_VAR=42\n"), 0o600))
		t.Setenv("GO_ENV", "development")
		t.Setenv("ANALYTICS_SIM_TEST_VAR", "")
		require.NoError(t, os.Unsetenv("ANALYTICS_SIM_TEST_VAR"))

		require.NoError(t, InitEnvironmentVariables(dir))
		assert.Equal(t, "42", os.Getenv("ANALYTICS_SIM_TEST_VAR"))
	})
}

func TestOpenText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, []byte("symbol,epoch\n")...), 0o600))

	r, err := OpenText(path)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "symbol,epoch\n", string(data))
}
