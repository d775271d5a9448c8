package core

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	tokOnce sync.Once
	tok     tokenizer.Codec
	tokErr  error
)

// TokenCount returns the number of cl100k_base tokens in text.  Other
// providers tokenize differently; the count is an estimate for them.
func TokenCount(text string) (n int, err error) {
	tokOnce.Do(func() {
		tok, tokErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if tokErr != nil {
		return 0, tokErr
	}
	ids, _, err := tok.Encode(text)
	if err != nil {
		return
	}
	return len(ids), nil
}

// TokenCount returns the token count of every turn's content.
func (c *Conversation) TokenCount() (n int, err error) {
	for _, t := range c.turns {
		var k int
		k, err = TokenCount(t.Content)
		if err != nil {
			return
		}
		n += k
	}
	return
}
