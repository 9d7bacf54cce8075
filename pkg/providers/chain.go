// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

// Candidate is one model in a fallback chain.
type Candidate struct {
	Model      string
	Classifier triage.Classifier
}

// Chain tries each candidate in order and returns the first verdict.
type Chain struct {
	candidates []Candidate
}

func NewChain(candidates ...Candidate) *Chain {
	return &Chain{candidates: candidates}
}

func (c *Chain) Models() []string {
	models := make([]string, 0, len(c.candidates))
	for _, cand := range c.candidates {
		models = append(models, cand.Model)
	}
	return models
}

func (c *Chain) Classify(ctx context.Context, text string) (triage.Verdict, error) {
	if len(c.candidates) == 0 {
		return triage.Verdict{}, fmt.Errorf("empty classifier chain: %w", triage.ErrClassificationUnavailable)
	}

	var errs []error
	for i, cand := range c.candidates {
		verdict, err := cand.Classifier.Classify(ctx, text)
		if err == nil {
			return verdict, nil
		}

		fe := classifyError(cand.Model, err)
		errs = append(errs, fe)
		logger.WarnCF("provider", "Classifier attempt failed", map[string]interface{}{
			"model":   cand.Model,
			"attempt": i + 1,
			"reason":  string(fe.Reason),
			"status":  fe.Status,
			"error":   err.Error(),
		})

		if ctx.Err() != nil {
			break
		}
	}
	return triage.Verdict{}, fmt.Errorf("%w: %w", triage.ErrClassificationUnavailable, errors.Join(errs...))
}
