// Package ollama implements question.Generator against a local Ollama
// server's /api/generate endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/admmpy/aide/pkg/question"
)

const (
	defaultTimeout    = 5 * time.Minute
	defaultMaxRetries = 2
	temperature       = 0.7
	maxTokens         = 768
)

// domains a question is drawn from when the caller does not name one.
var domains = []string{
	"e-commerce",
	"HR/employees",
	"social media",
	"healthcare",
	"finance",
	"logistics",
}

// Config configures the Ollama client.
type Config struct {
	BaseURL    string        // e.g. http://localhost:11434
	Model      string        // e.g. qwen3:4b
	Timeout    time.Duration // per-request. 0 = 5 minutes.
	MaxRetries int           // regeneration attempts on malformed output. 0 = 2.

	// Dataset bounds fed into the prompt.
	MaxTables int
	MaxRows   int
}

// Client generates practice questions through Ollama.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates an Ollama-backed generator.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxTables <= 0 {
		cfg.MaxTables = 5
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Generate produces a question for the given difficulty, picking a random
// domain when none is supplied. Malformed model output is retried with the
// parse error folded back into the prompt; an unreachable server fails
// immediately with question.ErrUnavailable.
func (c *Client) Generate(ctx context.Context, difficulty question.Difficulty, domain string) (*question.Question, error) {
	if domain == "" {
		domain = domains[rand.Intn(len(domains))]
	}
	return c.generateWithRetries(ctx, buildPrompt(difficulty, domain, c.cfg.MaxTables, c.cfg.MaxRows))
}

// GenerateCustom produces a question from a free-form user prompt.
func (c *Client) GenerateCustom(ctx context.Context, userPrompt string) (*question.Question, error) {
	return c.generateWithRetries(ctx, buildCustomPrompt(userPrompt, c.cfg.MaxTables, c.cfg.MaxRows))
}

func (c *Client) generateWithRetries(ctx context.Context, prompt string) (*question.Question, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		p := prompt
		if attempt > 0 && lastErr != nil {
			p = retryPrompt(prompt, lastErr.Error())
			c.logger.Warn("retrying question generation",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
		}

		raw, err := c.complete(ctx, p)
		if err != nil {
			return nil, err // already classified as unavailable
		}

		q, err := parseQuestion(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return q, nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", question.ErrInvalid, c.cfg.MaxRetries+1, lastErr)
}

// generateRequest is the Ollama /api/generate payload.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload := generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: false,
		// JSON-constrained output sidesteps the model's thinking prose.
		Format: "json",
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", question.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", question.ErrUnavailable, resp.StatusCode, b)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", question.ErrUnavailable, err)
	}
	return out.Response, nil
}

// Available reports whether the configured model is served by Ollama.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == c.cfg.Model {
			return true
		}
	}
	return false
}

// parseQuestion extracts, decodes, and validates a question from raw model
// output.
func parseQuestion(raw string) (*question.Question, error) {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var q question.Question
	if err := json.Unmarshal([]byte(jsonStr), &q); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

var _ question.Generator = (*Client)(nil)
