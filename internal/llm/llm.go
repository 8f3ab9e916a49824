// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator produces one completion for a conversation. Implementations must
// honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GenerationError wraps a failed model call. Retryable marks transport
// failures and the status codes worth another attempt.
type GenerationError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model generation failed status=%d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func IsRetryable(err error) bool {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Retryable
	}
	return false
}

func retryableStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == 408 || status == 429
}
