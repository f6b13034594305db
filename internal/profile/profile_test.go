package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("LLM_BASE_URL", "")
	t.Setenv("LLM_MODEL", "")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.Equal(t, 120, p.LLMTimeout)
	assert.Equal(t, 10, p.MaxActionRounds)
	assert.Equal(t, 10, p.MaxSameReadStreak)
}

func TestFromEnvUnknownProviderFallsBack(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mystery")
	t.Setenv("LLM_BASE_URL", "")
	t.Setenv("LLM_MODEL", "")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
}

func TestFromEnvExplicitOverridesSurvive(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_BASE_URL", "http://10.0.0.5:11434")
	t.Setenv("LLM_MODEL", "qwen2.5")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "http://10.0.0.5:11434", p.LLMBaseURL)
	assert.Equal(t, "qwen2.5", p.LLMModel)
}

func TestFromEnvClampsRoundCaps(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_ACTION_ROUNDS", "99")
	t.Setenv("SCHEDULER_MAX_SAME_READ_ACTION_STREAK", "0")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, 10, p.MaxActionRounds)
	assert.Equal(t, 1, p.MaxSameReadStreak)

	t.Setenv("SCHEDULER_MAX_ACTION_ROUNDS", "not-a-number")
	p = &Profile{}
	p.FromEnv()
	assert.Equal(t, 10, p.MaxActionRounds)
}

func TestIsLLMConfigured(t *testing.T) {
	assert.False(t, (&Profile{LLMProvider: "deepseek"}).IsLLMConfigured())
	assert.True(t, (&Profile{LLMProvider: "deepseek", LLMAPIKey: "sk-x"}).IsLLMConfigured())
	// Local ollama needs no key.
	assert.True(t, (&Profile{LLMProvider: "ollama"}).IsLLMConfigured())
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	p := &Profile{Mode: "nonsense", Data: dir}
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
	assert.Equal(t, filepath.Join(dir, "schedsense_demo.db"), p.DSN)

	p = &Profile{Mode: "prod", Data: dir, DSN: "/tmp/custom.db"}
	require.NoError(t, p.Validate())
	assert.Equal(t, "/tmp/custom.db", p.DSN)

	p = &Profile{Mode: "dev", Data: filepath.Join(dir, "missing-subdir")}
	assert.Error(t, p.Validate())
}
