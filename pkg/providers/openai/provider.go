// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package openaiprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/providers/protocoltypes"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

const DefaultModel = "gpt-4o-mini"

// Classifier asks an OpenAI model for a triage verdict over the Responses API.
type Classifier struct {
	client    *openai.Client
	model     string
	maxTokens int64
	prompt    string
}

type Options struct {
	APIKey    string
	APIBase   string
	Model     string
	MaxTokens int
	Prompt    string
}

func NewClassifier(opts Options) *Classifier {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.APIBase); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	client := openai.NewClient(reqOpts...)

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = protocoltypes.DefaultSystemPrompt
	}
	return &Classifier{
		client:    &client,
		model:     model,
		maxTokens: int64(opts.MaxTokens),
		prompt:    prompt,
	}
}

func (c *Classifier) Model() string { return c.model }

func (c *Classifier) Classify(ctx context.Context, text string) (triage.Verdict, error) {
	resp, err := c.client.Responses.New(ctx, c.buildParams(text))
	if err != nil {
		fields := map[string]interface{}{
			"model": c.model,
			"error": err.Error(),
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			fields["status_code"] = apiErr.StatusCode
			fields["api_code"] = apiErr.Code
			if apiErr.Response != nil {
				fields["request_id"] = apiErr.Response.Header.Get("x-request-id")
			}
		}
		logger.WarnCF("provider.openai", "OpenAI API call failed", fields)
		return triage.Verdict{}, fmt.Errorf("openai API call: %w", err)
	}

	verdict, err := protocoltypes.ParseVerdict(resp.OutputText())
	if err != nil {
		return triage.Verdict{}, fmt.Errorf("model %s: %w", c.model, err)
	}
	return verdict, nil
}

func (c *Classifier) buildParams(text string) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				{
					OfMessage: &responses.EasyInputMessageParam{
						Role:    responses.EasyInputMessageRoleUser,
						Content: responses.EasyInputMessageContentUnionParam{OfString: openai.Opt(strings.TrimSpace(text))},
					},
				},
			},
		},
		Instructions: openai.Opt(c.prompt),
		Store:        openai.Opt(false),
		Temperature:  openai.Opt(0.0),
	}
	if c.maxTokens > 0 {
		params.MaxOutputTokens = openai.Opt(c.maxTokens)
	}
	return params
}
