package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// FailureMessage is the only failure text callers ever see from Generate.
const FailureMessage = "AI failed to generate a valid response."

// Config holds everything the pipeline needs to talk to the model. It is built once
// at startup and never mutated afterwards.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxAttempts    int
	RetryDelay     time.Duration
	MaxTokens      int
	RequestTimeout time.Duration
}

// DefaultConfig mirrors the local LM Studio setup the service was first run against.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://127.0.0.1:1234/v1",
		APIKey:         "lm-studio",
		Model:          "deepseek-r1-distill-qwen-7b",
		MaxAttempts:    3,
		RetryDelay:     2 * time.Second,
		MaxTokens:      500,
		RequestTimeout: 2 * time.Minute,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfig)
	case c.Model == "":
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidConfig)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	case c.MaxTokens < 1:
		return fmt.Errorf("%w: max tokens must be at least 1, got %d", ErrInvalidConfig, c.MaxTokens)
	case c.RequestTimeout < 0:
		return fmt.Errorf("%w: request timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// ChatCompleter is the slice of *openai.Client the pipeline depends on.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Backoff decides how long to wait after the given failed attempt (1-based).
type Backoff interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same delay after every failed attempt.
type FixedBackoff struct {
	Delay time.Duration
}

func (b FixedBackoff) Next(int) time.Duration { return b.Delay }

// Generator drives the retry loop around the chat-completion endpoint. It keeps no
// per-call state and is safe for concurrent use.
type Generator struct {
	client    ChatCompleter
	cfg       Config
	backoff   Backoff
	extractor *Extractor
	logger    zerolog.Logger

	// wait blocks for d or until ctx is done. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// Option customises a Generator.
type Option func(*Generator)

// WithClient swaps the chat-completion client, e.g. for a fake in tests.
func WithClient(client ChatCompleter) Option {
	return func(g *Generator) { g.client = client }
}

// WithBackoff replaces the fixed delay derived from Config.RetryDelay.
func WithBackoff(b Backoff) Option {
	return func(g *Generator) { g.backoff = b }
}

// WithWaitFunc replaces the timer-based wait between attempts.
func WithWaitFunc(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Generator) { g.wait = wait }
}

// NewGenerator builds a Generator talking to cfg.BaseURL through go-openai.
func NewGenerator(cfg Config, logger zerolog.Logger, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:       cfg,
		backoff:   FixedBackoff{Delay: cfg.RetryDelay},
		extractor: NewExtractor(logger),
		logger:    logger.With().Str("component", "ai_generator").Logger(),
		wait:      sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = cfg.BaseURL
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
		g.client = openai.NewClientWithConfig(clientCfg)
	}

	return g, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
