package analysis

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// Chat-format framing overhead per message.
	tokensPerMessage = 4
	// Every reply is primed with an assistant role preamble.
	replyPrimerTokens = 2
)

// TokenEstimator produces a deterministic upper-bound token count for a chat
// request, used to reserve token budget before the call is made.
type TokenEstimator struct {
	enc                 *tiktoken.Tiktoken
	maxCompletionTokens int
	completionChoices   int
}

func NewTokenEstimator(encoding string, maxCompletionTokens, completionChoices int) (*TokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer encoding %q: %w", encoding, err)
	}
	if completionChoices < 1 {
		completionChoices = 1
	}
	return &TokenEstimator{
		enc:                 enc,
		maxCompletionTokens: maxCompletionTokens,
		completionChoices:   completionChoices,
	}, nil
}

// EstimateRequest counts the prompt tokens of a system+user message pair plus
// the reserved completion allowance.
func (e *TokenEstimator) EstimateRequest(systemPrompt, userPrompt string) int {
	total := e.maxCompletionTokens * e.completionChoices
	for _, content := range []string{systemPrompt, userPrompt} {
		total += tokensPerMessage
		total += len(e.enc.Encode(content, nil, nil))
	}
	total += replyPrimerTokens
	return total
}
