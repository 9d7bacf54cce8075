// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package anthropicprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zhaopengme/triagebot/pkg/providers/protocoltypes"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	defaultMaxTokens = 512
)

// Classifier asks a Claude model for a triage verdict.
type Classifier struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	prompt    string
	baseURL   string
}

type Options struct {
	APIKey    string
	APIBase   string
	Model     string
	MaxTokens int
	Prompt    string
}

func NewClassifier(opts Options) *Classifier {
	baseURL := normalizeBaseURL(opts.APIBase)
	client := anthropic.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	c := NewClassifierWithClient(&client, opts)
	c.baseURL = baseURL
	return c
}

func NewClassifierWithClient(client *anthropic.Client, opts Options) *Classifier {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = protocoltypes.DefaultSystemPrompt
	}
	return &Classifier{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		prompt:    prompt,
		baseURL:   defaultBaseURL,
	}
}

func (c *Classifier) Model() string { return c.model }

func (c *Classifier) BaseURL() string { return c.baseURL }

func (c *Classifier) Classify(ctx context.Context, text string) (triage.Verdict, error) {
	resp, err := c.client.Messages.New(ctx, c.buildParams(text))
	if err != nil {
		return triage.Verdict{}, fmt.Errorf("claude API call: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.AsText().Text)
		}
	}

	verdict, err := protocoltypes.ParseVerdict(content.String())
	if err != nil {
		return triage.Verdict{}, fmt.Errorf("model %s: %w", c.model, err)
	}
	return verdict, nil
}

func (c *Classifier) buildParams(text string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.prompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(strings.TrimSpace(text))),
		},
		Temperature: anthropic.Float(0),
	}
}

func normalizeBaseURL(apiBase string) string {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		return defaultBaseURL
	}

	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		base = strings.TrimSuffix(base, "/v1")
	}
	if base == "" {
		return defaultBaseURL
	}

	return base
}
