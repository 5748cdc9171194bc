package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenEstimator_EstimateRequest(t *testing.T) {
	est, err := NewTokenEstimator("cl100k_base", 1000, 1)
	if err != nil {
		t.Skipf("tokenizer encoding unavailable: %v", err)
	}

	got := est.EstimateRequest("This is a system prompt.", "This is a user prompt.")
	// 1000 completion allowance + both message contents + chat framing + the
	// assistant reply primer.
	assert.Equal(t, 1024, got)
}

func TestTokenEstimator_ChoicesMultiplyCompletionAllowance(t *testing.T) {
	est, err := NewTokenEstimator("cl100k_base", 1000, 1)
	if err != nil {
		t.Skipf("tokenizer encoding unavailable: %v", err)
	}
	est3, err := NewTokenEstimator("cl100k_base", 1000, 3)
	if err != nil {
		t.Skipf("tokenizer encoding unavailable: %v", err)
	}

	single := est.EstimateRequest("a", "b")
	triple := est3.EstimateRequest("a", "b")
	assert.Equal(t, single+2000, triple)
}
