// Package llm talks to an OpenAI-compatible chat completion endpoint and
// builds the grounded prompts sent to it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "google/gemma-3n-e2b-it:free"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("language model API key is not set")
	ErrEmptyResponse = errors.New("language model returned no choices")
)

// Config configures Client.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float32
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables client-side rate limiting
}

// Client sends single-turn chat completions. Calls go through a circuit
// breaker and are never retried.
type Client struct {
	client      *goopenai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	hasKey      bool
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient builds a Client. A missing API key is reported on first use so
// the rest of the program can still start.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	oc := goopenai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = TrimEndpoint(cfg.BaseURL)
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		client:      goopenai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		hasKey:      cfg.APIKey != "",
		breaker:     breaker,
		limiter:     limiter,
		logger:      logger,
	}
}

// TrimEndpoint turns a full chat completions URL into the API root that
// go-openai expects.
func TrimEndpoint(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	return u
}

// Generate answers question from reference using the matching prompt template.
func (c *Client) Generate(ctx context.Context, reference, question string) (string, error) {
	return c.Complete(ctx, BuildPrompt(reference, question))
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.hasKey {
		return "", ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model: c.model,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		c.logger.Error("chat completion failed", "model", c.model, "error", err, "elapsed", time.Since(start))
		return "", fmt.Errorf("chat completion: %w", err)
	}
	c.logger.Info("chat completion", "model", c.model, "elapsed", time.Since(start))
	return result.(string), nil
}
