package domain

import "context"

// Completer is the AI-scoring provider contract: a prompt in, free-form text
// out. The text is expected (not guaranteed) to contain a JSON payload;
// callers parse defensively and fall back on ErrAIUnavailable.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
