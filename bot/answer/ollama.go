package answer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaOptions configures an Ollama provider.
type OllamaOptions struct {
	Name string
	// Endpoint is the server base URL, e.g. http://localhost:11434.
	Endpoint   string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Ollama queries an Ollama server through its native chat API.
type Ollama struct {
	name      string
	model     string
	maxTokens int
	timeout   time.Duration
	c         *ollama.Client
}

var _ Provider = (*Ollama)(nil)

// NewOllama builds the provider.
func NewOllama(opts OllamaOptions) (*Ollama, error) {
	base, err := url.Parse(strings.TrimRight(opts.Endpoint, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("answer: invalid ollama endpoint %q", opts.Endpoint)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	name := opts.Name
	if name == "" {
		name = "ollama"
	}
	return &Ollama{
		name:      name,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		c:         ollama.NewClient(base, hc),
	}, nil
}

// Name implements Provider.
func (p *Ollama) Name() string { return p.name }

// Timeout implements Timeouter.
func (p *Ollama) Timeout() time.Duration { return p.timeout }

// Query implements Provider.
func (p *Ollama) Query(ctx context.Context, text string) (string, error) {
	stream := false
	req := &ollama.ChatRequest{
		Model:    p.model,
		Messages: []ollama.Message{{Role: "user", Content: text}},
		Stream:   &stream,
	}
	if p.maxTokens > 0 {
		req.Options = map[string]any{"num_predict": p.maxTokens}
	}

	var b strings.Builder
	err := p.c.Chat(ctx, req, func(cr ollama.ChatResponse) error {
		b.WriteString(cr.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrProvider, p.name, err)
	}
	return b.String(), nil
}
