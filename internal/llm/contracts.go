package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/atelierflow/formscan/internal/imaging"
)

// Gateway is the narrow contract every pipeline pass depends on: one prompt,
// an ordered list of page images, raw text back. The gateway never parses.
type Gateway interface {
	Generate(ctx context.Context, prompt string, pages []*imaging.Page) (string, error)
}

// Model-error taxonomy. All of these are recoverable by the caller; only the
// primary extraction treats a gateway failure as fatal to its page.
var (
	// ErrInvalidInput means the call had neither a prompt nor any image.
	ErrInvalidInput = errors.New("llm: invalid input")
	// ErrNoResponse means the model returned no response object at all.
	ErrNoResponse = errors.New("llm: no response")
	// ErrEmptyText means a response arrived but carried no text.
	ErrEmptyText = errors.New("llm: empty text")
)

// TransportError wraps network/auth/quota failures from the underlying call.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: transport failure: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
