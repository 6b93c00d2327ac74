package tiktoken

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts BPE tokens for the context budget using the same
// tokenization family as the completion model.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

func New(encodingName string) (*Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingName, err)
	}
	return &Tokenizer{encoding: encoding}, nil
}

func (t *Tokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
