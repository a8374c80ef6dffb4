package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"hs-classifier/api/internal/classifier"
	"hs-classifier/api/internal/hscode"
	"hs-classifier/api/internal/util"
)

const DefaultBaseURL = "https://api.openai.com"

type Engine struct {
	APIKey         string
	Model          string
	BaseURL        string
	MaxPredictions int
	Temperature    float64
	httpc          *http.Client
}

func New(key, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	return &Engine{
		APIKey:         strings.TrimSpace(key),
		Model:          strings.TrimSpace(model),
		BaseURL:        DefaultBaseURL,
		MaxPredictions: hscode.DefaultMaxPredictions,
		Temperature:    0.1,
		// the caller's context carries the deadline
		httpc: &http.Client{
			Timeout:   0,
			Transport: tr,
		},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for custom timeouts or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

// WithBaseURL points the engine at an OpenAI-compatible server.
func (e *Engine) WithBaseURL(u string) *Engine {
	if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
		e.BaseURL = u
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *Engine) Classify(ctx context.Context, description string) ([]hscode.Prediction, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set: %w", classifier.ErrEngineNotConfigured)
	}

	body := chatRequest{
		Model: e.Model,
		Messages: []chatMessage{
			{Role: "system", Content: hscode.SystemPrompt(e.MaxPredictions)},
			{Role: "user", Content: hscode.UserPrompt(description)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    e.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai classify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai classify: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai classify: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai classify: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &classifier.APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("openai classify: bad envelope: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices; body=%s", hscode.ErrInvalidOutput, util.Truncate(string(raw), 512))
	}
	return hscode.ParseResponse(cr.Choices[0].Message.Content)
}

// errorMessage pulls error.message out of an OpenAI error body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && strings.TrimSpace(env.Error.Message) != "" {
		return strings.TrimSpace(env.Error.Message)
	}
	return util.Truncate(strings.TrimSpace(string(raw)), 512)
}
