package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaHost is where a local Ollama daemon listens by default.
const DefaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient is a minimal HTTP client for a local Ollama runtime.
type OllamaClient struct {
	httpClient       *http.Client
	host             string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
}

// NewOllamaClient creates a client for cfg.Host, defaulting to the local daemon.
func NewOllamaClient(cfg RuntimeConfig) *OllamaClient {
	cfg = cfg.withDefaults(60*time.Second, 2, 200*time.Millisecond, time.Second)
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultOllamaHost
	}
	return &OllamaClient{
		httpClient:       &http.Client{Timeout: cfg.HTTPTimeout},
		host:             host,
		retryMaxAttempts: cfg.RetryMax,
		retryBaseDelay:   cfg.BaseDelay,
	}
}

// Structures aligned with Ollama /api/chat
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}
type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (c *OllamaClient) payload(req GenerateRequest, stream bool) ([]byte, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{
		Model:    req.Model,
		Messages: make([]ollamaChatMessage, len(req.Messages)),
		Stream:   stream,
		Options:  map[string]any{},
	}
	for i, m := range req.Messages {
		oreq.Messages[i] = ollamaChatMessage(m)
	}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	b, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return b, nil
}

func (c *OllamaClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(httpReq)
}

// ollamaError classifies a non-2xx Ollama response. Ollama reports errors as
// {"error": "..."}.
func ollamaError(resp *http.Response) error {
	apiErr := readAPIError(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &ModelNotFoundError{APIError: apiErr}
	case resp.StatusCode == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case resp.StatusCode >= 500:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// Generate sends a chat request to Ollama and maps the reply to GenerateResponse.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := c.payload(req, false)
	if err != nil {
		return nil, err
	}

	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.post(ctx, body)
		if err != nil {
			if isRetryableNetErr(err) && attempt < c.retryMaxAttempts {
				if err := sleepCtx(ctx, withJitter(backoff)); err != nil {
					return nil, err
				}
				backoff *= 2
				continue
			}
			return nil, &UnreachableError{Host: c.host, Err: err}
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var oresp ollamaChatResponse
			err := json.NewDecoder(resp.Body).Decode(&oresp)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			return &GenerateResponse{
				Choices:   []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
				RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
			}, nil
		}
		lastErr = ollamaError(resp)
		resp.Body.Close()
		if resp.StatusCode < 500 || attempt == c.retryMaxAttempts {
			return nil, lastErr
		}
		if err := sleepCtx(ctx, withJitter(backoff)); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

// GenerateStream streams newline-delimited JSON chunks from Ollama.
func (c *OllamaClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	body, err := c.payload(req, true)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, body)
	if err != nil {
		return &UnreachableError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ollamaError(resp)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var chunk ollamaChatResponse
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode stream: %w", err)
		}
		if chunk.Error != "" {
			return &ServerError{APIError: &APIError{StatusCode: resp.StatusCode, Message: chunk.Error}}
		}
		if chunk.Message.Content != "" {
			onDelta(chunk.Message.Content)
		}
		if chunk.Done {
			return nil
		}
	}
}
