package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hs-classifier/api/internal/hscode"
)

var ErrEngineNotConfigured = errors.New("classification engine is not initialized")

type Engine interface {
	Name() string
	GetModel() string
	Classify(ctx context.Context, description string) ([]hscode.Prediction, error)
}

// APIError is a non-2xx answer from an upstream LLM provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error: %d - %s", e.StatusCode, e.Message)
}

type Engines struct {
	OpenAI Engine
	Gemini Engine
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(llmName)) {
	case "gpt", "openai":
		eng = e.OpenAI
	case "gemini":
		eng = e.Gemini
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use 'gpt' or 'gemini'", llmName)
	}
	if eng == nil {
		return nil, fmt.Errorf("%s: %w", llmName, ErrEngineNotConfigured)
	}
	return eng, nil
}
