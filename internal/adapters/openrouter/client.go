// Package openrouter implements the decision oracle on top of the
// OpenRouter chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/alejandrodnm/neuroarena/internal/ports"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "deepseek/deepseek-r1"

	// Free-tier OpenRouter allows ~20 req/min; stay under it.
	requestsPerSec = 0.3
	requestBurst   = 3

	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond
)

// Config configures the OpenRouter client.
type Config struct {
	BaseURL string
	APIKey  string
	// Model is the default model; per-agent models override it.
	Model       string
	Referer     string
	Title       string
	Temperature float64
	Timeout     time.Duration
}

// Client is the OpenRouter chat client with rate limiting and retries.
// It implements ports.Oracle.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
}

// NewClient creates a Client. APIKey is required; everything else has
// working defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter.NewClient: missing api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.6
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// RequestDecision asks the agent's model for a trading decision.
func (c *Client) RequestDecision(ctx context.Context, dc ports.DecisionContext) (domain.Decision, error) {
	system, user := buildDecisionPrompt(dc)

	text, err := c.chat(ctx, c.model(dc.Account.Model), system, user)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("openrouter.RequestDecision: %w", err)
	}

	d, err := parseDecision(text)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("openrouter.RequestDecision: agent %s: %w", dc.Account.ID, err)
	}
	return d, nil
}

// RequestReaction asks for one short chat comment about another
// agent's freshly opened position.
func (c *Client) RequestReaction(ctx context.Context, reactor domain.Account, trader string, pos domain.Position) (string, error) {
	system, user := buildReactionPrompt(reactor, trader, pos)

	text, err := c.chat(ctx, c.model(reactor.Model), system, user)
	if err != nil {
		return "", fmt.Errorf("openrouter.RequestReaction: %w", err)
	}
	return cleanComment(text), nil
}

func (c *Client) model(override string) string {
	if override != "" {
		return override
	}
	return c.cfg.Model
}

// chat runs one completion with rate limiting and retries, returning
// the raw assistant text.
func (c *Client) chat(ctx context.Context, model, system, user string) (string, error) {
	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	}

	var out chatResponse
	if err := c.post(ctx, c.cfg.BaseURL+"/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.Referer != "" {
			req.Header.Set("HTTP-Referer", c.cfg.Referer)
		}
		if c.cfg.Title != "" {
			req.Header.Set("X-Title", c.cfg.Title)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("openrouter retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(msg))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
