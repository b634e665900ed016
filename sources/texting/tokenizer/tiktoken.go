package tokenizer

import (
	"fmt"
	"sync"

	"colabai/sources/tracing"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts BPE tokens. The encoding is loaded on first use since loading may fetch it over the network.
type Tokenizer struct {
	encoding string
	log      *tracing.Logger

	once sync.Once
	tkm  *tiktoken.Tiktoken
	err  error
}

func New(encoding string, log *tracing.Logger) *Tokenizer {
	return &Tokenizer{encoding: encoding, log: log}
}

func (x *Tokenizer) Tokens(text string) (int64, error) {
	if text == "" {
		return 0, nil
	}

	x.once.Do(func() {
		x.tkm, x.err = tiktoken.GetEncoding(x.encoding)
		if x.err != nil {
			x.log.E("Failed to load token encoding", "encoding", x.encoding, tracing.InnerError, x.err)
		}
	})

	if x.err != nil {
		return 0, fmt.Errorf("failed to load %s encoding: %w", x.encoding, x.err)
	}

	defer tracing.ProfilePoint(x.log, "Tokens counted", "tokenizer.tiktoken.tokens")()
	return int64(len(x.tkm.Encode(text, nil, nil))), nil
}
