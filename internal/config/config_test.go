package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{"GROQ_API_KEY", "PORT", "CSVDASH_API_KEY", "CSVDASH_PORT", "CSVDASH_MODEL", "CSVDASH_NUMERIC_THRESHOLD"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "groq", c.Provider)
	assert.Equal(t, "deepseek-r1-distill-qwen-32b", c.Model)
	assert.Equal(t, 1000, c.MaxTokens)
	assert.InDelta(t, 0.7, c.Temperature, 1e-9)
	assert.Equal(t, 3000, c.Port)
	assert.Equal(t, "dist", c.StaticDir)
	assert.Equal(t, 1000, c.SampleSize)
	assert.InDelta(t, 0.7, c.NumericThreshold, 1e-9)
	assert.Equal(t, 5, c.TopValues)
	assert.Equal(t, 10000, c.ChunkSize)
	assert.Equal(t, 0, c.MaxHistory)
	assert.Equal(t, "info", c.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: from-file\nport: 8080\nnumeric_threshold: 0.5\n"), 0o644))

	t.Setenv("CSVDASH_MODEL", "from-env")
	t.Setenv("GROQ_API_KEY", "gsk_secret")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Model)
	assert.Equal(t, 8080, c.Port)
	assert.InDelta(t, 0.5, c.NumericThreshold, 1e-9)
	assert.Equal(t, "gsk_secret", c.APIKey)

	t.Setenv("PORT", "4000")
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, c.Port)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("GROQ_API_KEY=gsk_dotenv\n"), 0o644))

	require.NoError(t, LoadDotEnv(env, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { os.Unsetenv("GROQ_API_KEY") })
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gsk_dotenv", c.APIKey)
}

func TestSaveAndSet(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)

	require.NoError(t, c.Set("max_history", "25"))
	require.NoError(t, c.Set("log_format", "json"))
	require.NoError(t, c.Set("api_key", "12345"))
	assert.Equal(t, 25, c.MaxHistory)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, "12345", c.APIKey)
	assert.Error(t, c.Set("nope", "1"))
	assert.Error(t, c.Set("port", "not-a-port"))
	assert.Equal(t, 3000, c.Port)

	require.NoError(t, Save(c, ""))
	_, err = os.Stat(filepath.Join(home, ".csvdash", "config.yaml"))
	require.NoError(t, err)

	again, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, again.MaxHistory)
	assert.Equal(t, "json", again.LogFormat)
}

func TestMasked(t *testing.T) {
	assert.Equal(t, "gsk_****cdef", Global{APIKey: "gsk_1234cdef"}.Masked().APIKey)
	assert.Equal(t, "****", Global{APIKey: "short"}.Masked().APIKey)
	assert.Equal(t, "", Global{}.Masked().APIKey)
}
