// Package analyzer guesses why a conversation went quiet. It sits outside
// the timer core: nothing in timer, db or snapshot imports it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/ghosted/internal/metrics"
)

var (
	// ErrMissingAPIKey is returned when a model-backed classifier has no key
	ErrMissingAPIKey = errors.New("analyzer: missing api key")

	// ErrInvalidResponse is returned when the model reply cannot be decoded
	ErrInvalidResponse = errors.New("analyzer: invalid response")

	// ErrUnavailable is returned when the model could not be reached
	ErrUnavailable = errors.New("analyzer: unavailable")
)

// Provider names
const (
	ProviderKeyword = "keyword"
	ProviderClaude  = "claude"
)

// Analysis results for metrics
const (
	resultOK       = "ok"
	resultError    = "error"
	resultFallback = "fallback"
)

// Image is an encoded chat screenshot
type Image struct {
	MediaType string
	Data      []byte
}

// Request is the chat excerpt to analyze
type Request struct {
	Text   string
	Images []Image
}

// Result is the classifier's verdict
type Result struct {
	Cause      string   `json:"cause"`
	Suggestion string   `json:"suggestion"`
	Keywords   []string `json:"keywords"`
	Details    string   `json:"details,omitempty"`
}

// Classifier analyzes a chat excerpt
type Classifier interface {
	Name() string
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Config selects and configures the classifier
type Config struct {
	Provider  string        `toml:"provider" validate:"oneof=keyword claude"`
	APIKey    string        `toml:"api_key"`
	Model     string        `toml:"model"`
	MaxTokens int           `toml:"max_tokens" validate:"gte=0"`
	Timeout   time.Duration `toml:"timeout" validate:"gte=0"`
	BaseURL   string        `toml:"base_url"`
}

// DefaultConfig returns the keyword classifier configuration
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderKeyword,
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		Timeout:   30 * time.Second,
	}
}

// New builds the configured classifier. The claude provider is wrapped in a
// Fallback so a failed model call still yields a keyword verdict.
func New(config Config, logger *slog.Logger) (Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Provider {
	case "", ProviderKeyword:
		return NewKeywordClassifier(), nil
	case ProviderClaude:
		claude, err := NewClaudeClassifier(config, logger)
		if err != nil {
			return nil, err
		}
		return NewFallback(claude, NewKeywordClassifier(), logger), nil
	default:
		return nil, fmt.Errorf("unknown analyzer provider: %s", config.Provider)
	}
}

// Fallback tries Primary and degrades to Secondary when Primary is
// unavailable or returns something unusable
type Fallback struct {
	Primary   Classifier
	Secondary Classifier
	logger    *slog.Logger
}

// NewFallback creates a degrading classifier
func NewFallback(primary, secondary Classifier, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{Primary: primary, Secondary: secondary, logger: logger}
}

func (f *Fallback) Name() string {
	return f.Primary.Name()
}

func (f *Fallback) Analyze(ctx context.Context, req Request) (Result, error) {
	result, err := f.Primary.Analyze(ctx, req)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrInvalidResponse) {
		return Result{}, err
	}

	f.logger.Warn("classifier failed, falling back",
		"primary", f.Primary.Name(),
		"secondary", f.Secondary.Name(),
		"error", err)
	metrics.Analyses.WithLabelValues(f.Primary.Name(), resultFallback).Inc()

	return f.Secondary.Analyze(ctx, req)
}

func observe(classifier string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	metrics.Analyses.WithLabelValues(classifier, result).Inc()
}
