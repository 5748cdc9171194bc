package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/docshield/redactor/internal/errors"
	"github.com/docshield/redactor/internal/redact"
)

const sampleRules = `
default:
  - strategy: TextRedaction
    name: fixed-terms
    terms:
      - jane doe
      - "10 downing street"
  - strategy: LLMTextRedaction
    name: pii
    model: gpt-4.1-nano
    systemPrompt: You identify personal information in planning documents.
    terms:
      - names
      - addresses
    constraints:
      - Return strings exactly as they appear.
  - strategy: ImageRedaction
    name: faces
    confidenceThreshold: 0.6
minimal:
  - strategy: TextRedaction
    name: terms-only
    terms: ["x"]
`

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"default", "minimal"}, rules.Names())

	configs, err := rules.Load("default")
	require.NoError(t, err)
	require.Len(t, configs, 3)

	text, ok := configs[0].(redact.TextConfig)
	require.True(t, ok)
	assert.Equal(t, "fixed-terms", text.Name())
	assert.Equal(t, []string{"jane doe", "10 downing street"}, text.Terms)

	llm, ok := configs[1].(redact.LLMTextConfig)
	require.True(t, ok)
	assert.Equal(t, "gpt-4.1-nano", llm.Model)
	assert.Len(t, llm.Constraints, 1)

	image, ok := configs[2].(redact.ImageConfig)
	require.True(t, ok)
	assert.InDelta(t, 0.6, image.ConfidenceThreshold, 1e-9)
}

func TestRulesLoadUnknownSet(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)

	_, err = rules.Load("absent")
	assert.ErrorIs(t, err, apperr.ErrConfigNotFound)
}

func TestParseRulesUnknownStrategy(t *testing.T) {
	_, err := ParseRules([]byte(`
default:
  - strategy: AudioRedaction
    name: sounds
`))
	require.ErrorIs(t, err, apperr.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "AudioRedaction")
}

func TestParseRulesMissingModel(t *testing.T) {
	_, err := ParseRules([]byte(`
default:
  - strategy: LLMTextRedaction
    name: pii
`))
	require.ErrorIs(t, err, apperr.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "model")
}

func TestParseRulesTextNeedsTerms(t *testing.T) {
	_, err := ParseRules([]byte(`
default:
  - strategy: TextRedaction
    name: empty
`))
	assert.ErrorIs(t, err, apperr.ErrConfigInvalid)
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	configs, err := rules.Load("minimal")
	require.NoError(t, err)
	assert.Len(t, configs, 1)
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, apperr.ErrConfigNotFound)
}
