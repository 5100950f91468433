package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "English", cfg.Metalanguage)
	assert.Equal(t, "default", cfg.User)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, "provider: openai\nmodel: gpt-4o\nmetalanguage: German\nuser: rin\n")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "German", cfg.Metalanguage)
	assert.Equal(t, "rin", cfg.User)

	llmCfg := cfg.LLMConfig()
	assert.Equal(t, "openai", llmCfg.Provider)
	assert.Equal(t, "gpt-4o", llmCfg.OpenAI.Model)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "metalanguage: German\nprovider: openai\n")
	t.Setenv("KAIWA_METALANGUAGE", "French")
	t.Setenv("KAIWA_LLM_PROVIDER", "gemini")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "French", cfg.Metalanguage)
	assert.Equal(t, "gemini", cfg.LLMConfig().Provider)
}

func TestLoadFromInvalidYAML(t *testing.T) {
	path := writeConfig(t, "provider: [broken\n")
	_, err := LoadFrom(path)
	require.Error(t, err)
}
