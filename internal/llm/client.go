package llm

import (
	"context"
)

// Usage reports what one completion cost.
type Usage struct {
	TotalTokens int
	Model       string
}

type Client interface {
	Generate(ctx context.Context, prompt string) (string, Usage, error)
}
