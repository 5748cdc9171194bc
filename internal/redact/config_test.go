package redact

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullSystemPrompt(t *testing.T) {
	cfg := LLMTextConfig{
		RuleName:     "config name",
		Model:        "gpt-4.1-nano",
		Text:         "some text",
		SystemPrompt: "Some system prompt",
		Terms:        []string{"rule A", "rule B", "rule C"},
		Constraints:  []string{"constraint X", "constraint Y"},
	}

	want := "<SystemRole>\nSome system prompt\n</SystemRole>\n\n" +
		"<Terms>\n- rule A\n- rule B\n- rule C\n</Terms>\n\n" +
		fmt.Sprintf("%s\n\n", outputFormat) +
		"<Constraints>\n- constraint X\n- constraint Y\n</Constraints>"
	assert.Equal(t, want, cfg.FullSystemPrompt())
}

func TestFullSystemPrompt_NoConstraints(t *testing.T) {
	cfg := LLMTextConfig{
		RuleName:     "config name",
		Model:        "gpt-4.1-nano",
		Text:         "some text",
		SystemPrompt: "Some system prompt",
		Terms:        []string{"rule A", "rule B", "rule C"},
	}

	want := "<SystemRole>\nSome system prompt\n</SystemRole>\n\n" +
		"<Terms>\n- rule A\n- rule B\n- rule C\n</Terms>\n\n" +
		outputFormat
	assert.Equal(t, want, cfg.FullSystemPrompt())
}

func TestConfigDiscriminants(t *testing.T) {
	assert.Equal(t, StrategyText, TextConfig{}.Strategy())
	assert.Equal(t, StrategyLLMText, LLMTextConfig{}.Strategy())
	assert.Equal(t, StrategyImage, ImageConfig{}.Strategy())
	assert.Equal(t, StrategyImageLLMText, ImageLLMTextConfig{}.Strategy())

	assert.Equal(t, "iban rule", TextConfig{RuleName: "iban rule"}.Name())
}
