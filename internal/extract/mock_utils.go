package extract

import (
	"context"

	"github.com/latticehq/lattice/internal/llm"
)

type MockLLMClient struct {
	Response string
	Usage    llm.Usage
	Err      error
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, llm.Usage, error) {
	if m.Err != nil {
		return "", llm.Usage{}, m.Err
	}
	return m.Response, m.Usage, nil
}
