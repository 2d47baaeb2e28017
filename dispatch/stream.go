package dispatch

import (
	"context"
	"time"
	"unicode"
)

// Chunk is one unit of a simulated token stream: either a token or a
// terminal error.
type Chunk struct {
	Token string
	Err   error
}

// RunStream processes one user message to completion, then replays the final
// reply as a paced stream of whitespace-delimited tokens. Whitespace runs are
// emitted as their own tokens so the client can reassemble the reply
// byte-for-byte. The pacing is presentation only; the underlying turn is
// never interrupted once started. Cancelling ctx stops emission, not the
// completed turn.
func (d *Dispatcher) RunStream(ctx context.Context, sessionID, message string, reset bool) (<-chan Chunk, error) {
	reply, err := d.Run(ctx, sessionID, message, reset)
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for i, token := range tokenize(reply) {
			if i > 0 && d.opts.StreamDelay > 0 {
				select {
				case <-ctx.Done():
					out <- Chunk{Err: ctx.Err()}
					return
				case <-time.After(d.opts.StreamDelay):
				}
			}
			select {
			case <-ctx.Done():
				out <- Chunk{Err: ctx.Err()}
				return
			case out <- Chunk{Token: token}:
			}
		}
	}()
	return out, nil
}

// tokenize splits s into alternating runs of non-whitespace and whitespace,
// preserving every byte of the input.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	var tokens []string
	runes := []rune(s)
	start := 0
	inSpace := unicode.IsSpace(runes[0])
	for i := 1; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) != inSpace {
			tokens = append(tokens, string(runes[start:i]))
			start = i
			inSpace = !inSpace
		}
	}
	tokens = append(tokens, string(runes[start:]))
	return tokens
}
