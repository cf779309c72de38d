package llm

import (
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens for history budgeting. All supported models are
// approximated with the GPT-4 encoding; Claude tokenization is close enough
// for a trim heuristic.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter. A codec construction failure degrades to
// character-based estimation rather than erroring out.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// Count returns the number of tokens in text, estimating with 4 chars per
// token when no codec is available.
func (tc *TokenCounter) Count(text string) int {
	if tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TrimHistory drops the oldest messages until the history fits within budget
// tokens. The most recent messages always survive; a single oversized message
// is kept rather than sending an empty history.
func (tc *TokenCounter) TrimHistory(msgs []Message, budget int) []Message {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		total += tc.Count(msgs[i].Content)
		if total > budget {
			if i == len(msgs)-1 {
				return msgs[i:]
			}
			return msgs[i+1:]
		}
	}
	return msgs
}
