package backend

import (
	"encoding/json"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	encOnce sync.Once
	enc     tokenizer.Codec
	encErr  error
)

func encoder() (tokenizer.Codec, error) {
	encOnce.Do(func() {
		enc, encErr = tokenizer.Get(tokenizer.O200kBase)
		if encErr != nil {
			enc, encErr = tokenizer.Get(tokenizer.Cl100kBase)
		}
	})
	return enc, encErr
}

// CountTokens returns the BPE token count of text, or a 4-bytes-per-token
// approximation if no encoder is available.
func CountTokens(text string) int {
	e, err := encoder()
	if err != nil {
		return (len(text) + 3) / 4
	}
	ids, _, _ := e.Encode(text)
	return len(ids)
}

// EstimateUsage approximates the counters of a call whose vendor response
// carried no usage block. Each message costs 4 tokens of framing on top of
// its content; tool declarations are counted as their JSON.
func EstimateUsage(req *Request, reply *Reply) Usage {
	in := 3 + CountTokens(req.SystemPrompt)
	for _, m := range req.History {
		in += 4 + CountTokens(m.Role) + CountTokens(m.Content)
	}
	if len(req.Tools) > 0 {
		if b, err := json.Marshal(req.Tools); err == nil {
			in += CountTokens(string(b))
		}
	}

	out := 0
	for _, m := range reply.Messages {
		out += CountTokens(m)
	}
	for _, tc := range reply.ToolCalls {
		out += 3 + CountTokens(tc.Name)
		if b, err := json.Marshal(tc.Arguments); err == nil {
			out += CountTokens(string(b))
		}
	}
	return Usage{Total: in + out, Input: in, Output: out}
}
