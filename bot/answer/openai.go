package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIOptions configures an OpenAI-compatible chat completions provider.
type OpenAIOptions struct {
	Name string
	// Endpoint is the full chat completions URL.
	Endpoint   string
	Model      string
	APIKey     string
	MaxTokens  int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAI queries any endpoint speaking the chat completions protocol.
type OpenAI struct {
	name      string
	endpoint  string
	model     string
	apiKey    string
	maxTokens int
	timeout   time.Duration
	hc        *http.Client
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI builds the provider.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAI{
		name:      name,
		endpoint:  opts.Endpoint,
		model:     opts.Model,
		apiKey:    opts.APIKey,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		hc:        hc,
	}
}

// Name implements Provider.
func (p *OpenAI) Name() string { return p.name }

// Timeout implements Timeouter.
func (p *OpenAI) Timeout() time.Duration { return p.timeout }

type ccMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ccRequest struct {
	Model     string      `json:"model"`
	Messages  []ccMessage `json:"messages"`
	MaxTokens int         `json:"max_tokens,omitempty"`
}

type ccResponse struct {
	Choices []struct {
		Message ccMessage `json:"message"`
	} `json:"choices"`
}

// Query implements Provider.
func (p *OpenAI) Query(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(ccRequest{
		Model:     p.model,
		Messages:  []ccMessage{{Role: "user", Content: text}},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: encode request: %w", ErrProvider, p.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %s: build request: %w", ErrProvider, p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrProvider, p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s: http %d: %s", ErrProvider, p.name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out ccResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %s: decode response: %w", ErrProvider, p.name, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: no choices", ErrProvider, p.name)
	}
	return out.Choices[0].Message.Content, nil
}
