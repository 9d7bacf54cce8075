// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package providers

import (
	"fmt"
	"os"
	"strings"

	"github.com/zhaopengme/triagebot/pkg/config"
	anthropicprovider "github.com/zhaopengme/triagebot/pkg/providers/anthropic"
	openaiprovider "github.com/zhaopengme/triagebot/pkg/providers/openai"
)

type providerType int

const (
	providerTypeAnthropic providerType = iota
	providerTypeOpenAI
)

func resolveProviderType(name string) (providerType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "anthropic", "claude":
		return providerTypeAnthropic, nil
	case "openai":
		return providerTypeOpenAI, nil
	default:
		return 0, fmt.Errorf("unsupported classifier provider %q", name)
	}
}

// NewClassifier builds the configured model, plus its fallback model when one is set.
func NewClassifier(cfg config.ClassifierConfig) (*Chain, error) {
	pt, err := resolveProviderType(cfg.Provider)
	if err != nil {
		return nil, err
	}

	prompt, err := loadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	models := []string{cfg.Model}
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model {
		models = append(models, cfg.FallbackModel)
	}

	candidates := make([]Candidate, 0, len(models))
	for _, model := range models {
		switch pt {
		case providerTypeAnthropic:
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("anthropic api_key is required")
			}
			c := anthropicprovider.NewClassifier(anthropicprovider.Options{
				APIKey:    cfg.APIKey,
				APIBase:   cfg.APIBase,
				Model:     model,
				MaxTokens: cfg.MaxTokens,
				Prompt:    prompt,
			})
			candidates = append(candidates, Candidate{Model: c.Model(), Classifier: c})
		case providerTypeOpenAI:
			if cfg.OpenAIAPIKey == "" {
				return nil, fmt.Errorf("openai api_key is required")
			}
			c := openaiprovider.NewClassifier(openaiprovider.Options{
				APIKey:    cfg.OpenAIAPIKey,
				APIBase:   cfg.APIBase,
				Model:     model,
				MaxTokens: cfg.MaxTokens,
				Prompt:    prompt,
			})
			candidates = append(candidates, Candidate{Model: c.Model(), Classifier: c})
		}
	}
	return NewChain(candidates...), nil
}

func loadPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(config.ExpandHome(path))
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return prompt, nil
}
