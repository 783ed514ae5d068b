package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDotenv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEnvProvider_EnvironmentWins(t *testing.T) {
	path := writeDotenv(t, "ROOMCHAT_TEST_KEY=from-file\nROOMCHAT_TEST_ONLY_FILE=file-value\n")
	t.Setenv("ROOMCHAT_TEST_KEY", "from-env")

	p, err := NewEnvProvider(path)
	require.NoError(t, err)

	v, err := p.Get("ROOMCHAT_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	v, err = p.Get("ROOMCHAT_TEST_ONLY_FILE")
	require.NoError(t, err)
	assert.Equal(t, "file-value", v)
}

func TestEnvProvider_LaterFileOverrides(t *testing.T) {
	first := writeDotenv(t, "ROOMCHAT_TEST_LAYER=one\n")
	second := writeDotenv(t, "ROOMCHAT_TEST_LAYER=two\n")

	p, err := NewEnvProvider(first, second)
	require.NoError(t, err)
	v, err := p.Get("ROOMCHAT_TEST_LAYER")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestEnvProvider_SkipsMissingFiles(t *testing.T) {
	p, err := NewEnvProvider(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	_, err = p.Get("ROOMCHAT_TEST_UNSET_KEY")
	assert.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "ROOMCHAT_TEST_UNSET_KEY")
}

func TestEnvProvider_EmptyValueIsMissing(t *testing.T) {
	t.Setenv("ROOMCHAT_TEST_EMPTY", "")
	p, err := NewEnvProvider()
	require.NoError(t, err)

	_, err = p.Get("ROOMCHAT_TEST_EMPTY")
	assert.ErrorIs(t, err, ErrMissing)
}

func TestRequire(t *testing.T) {
	p := MapProvider{"A": "1", "B": "2"}

	got, err := Require(p, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, got)

	_, err = Require(p, "A", "C")
	assert.ErrorIs(t, err, ErrMissing)
}
