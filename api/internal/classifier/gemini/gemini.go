package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"hs-classifier/api/internal/classifier"
	"hs-classifier/api/internal/hscode"
)

const maxAttempts = 3

type Engine struct {
	APIKey         string
	Model          string
	MaxPredictions int
	Temperature    float32

	// backoff between attempts grows linearly: attempt * backoff
	backoff time.Duration
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey:         strings.TrimSpace(apiKey),
		Model:          strings.TrimSpace(model),
		MaxPredictions: hscode.DefaultMaxPredictions,
		Temperature:    0.1,
		backoff:        300 * time.Millisecond,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Classify(ctx context.Context, description string) ([]hscode.Prediction, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty: %w", classifier.ErrEngineNotConfigured)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(e.Temperature),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(hscode.SystemPrompt(e.MaxPredictions))},
	}

	var txt string
	err = withRetry(ctx, maxAttempts, e.backoff, func(ctx context.Context) error {
		resp, err := m.GenerateContent(ctx, genai.Text(hscode.UserPrompt(description)))
		if err != nil {
			return err
		}
		txt = firstText(resp)
		return nil
	})
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &classifier.APIError{StatusCode: gerr.Code, Message: gerr.Message}
		}
		return nil, fmt.Errorf("gemini classify: %w", err)
	}
	if strings.TrimSpace(txt) == "" {
		return nil, fmt.Errorf("%w: gemini returned no text", hscode.ErrInvalidOutput)
	}
	return hscode.ParseResponse(txt)
}

// withRetry runs fn up to attempts times, sleeping attempt*backoff between failures.
// It gives up early when ctx is done.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}
	return lastErr
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
