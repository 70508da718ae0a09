package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/bytedance/sonic"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 1024
)

const prompt = `Analyze this chat log and judge the other person's attitude.
Focus on:
1. How eager their replies are
2. Whether they brush you off (e.g. "hmm", "oh", "haha", "ok")
3. How many words and how much feeling they put in

Chat log:
%s

Reply with a single JSON object and nothing else:
{"cause": "cause of death", "suggestion": "advice", "keywords": ["keyword"], "details": "detailed analysis"}`

const imageOnlyText = "(no text, read the attached screenshots)"

// ClaudeClassifier asks an Anthropic model for the verdict
type ClaudeClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClaudeClassifier creates a model-backed classifier
func NewClaudeClassifier(config Config, logger *slog.Logger) (*ClaudeClassifier, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(1),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	logger.Debug("claude classifier initialized",
		"model", model,
		"max_tokens", maxTokens,
		"timeout", timeout)

	return &ClaudeClassifier{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (c *ClaudeClassifier) Name() string {
	return ProviderClaude
}

func (c *ClaudeClassifier) Analyze(ctx context.Context, req Request) (Result, error) {
	result, err := c.analyze(ctx, req)
	observe(c.Name(), err)
	return result, err
}

func (c *ClaudeClassifier) analyze(ctx context.Context, req Request) (Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = imageOnlyText
	}

	blocks := []anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock(fmt.Sprintf(prompt, text)),
	}
	for _, image := range req.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			image.MediaType,
			base64.StdEncoding.EncodeToString(image.Data),
		))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}

	startTime := time.Now()
	resp, err := c.client.Messages.New(timeoutCtx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			c.logger.Error("claude api call failed",
				"status", apiErr.StatusCode,
				"error", err)
		} else {
			c.logger.Error("claude api call failed", "error", err)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	c.logger.Debug("claude analysis completed",
		"images", len(req.Images),
		"response_length", reply.Len(),
		"duration", time.Since(startTime))

	return parseResult(reply.String())
}

// parseResult decodes the first JSON object in the reply. Models sometimes
// wrap it in prose or a code fence.
func parseResult(reply string) (Result, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Result{}, fmt.Errorf("%w: no json object in reply", ErrInvalidResponse)
	}

	var result Result
	if err := sonic.UnmarshalString(reply[start:end+1], &result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if result.Cause == "" {
		return Result{}, fmt.Errorf("%w: missing cause", ErrInvalidResponse)
	}
	if result.Keywords == nil {
		result.Keywords = []string{}
	}

	return result, nil
}
