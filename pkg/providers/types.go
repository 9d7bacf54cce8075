// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"

	"github.com/zhaopengme/triagebot/pkg/providers/protocoltypes"
)

// FailoverReason classifies why a classification attempt failed.
type FailoverReason string

const (
	FailoverAuth       FailoverReason = "auth"
	FailoverRateLimit  FailoverReason = "rate_limit"
	FailoverBilling    FailoverReason = "billing"
	FailoverTimeout    FailoverReason = "timeout"
	FailoverFormat     FailoverReason = "format"
	FailoverOverloaded FailoverReason = "overloaded"
	FailoverUnknown    FailoverReason = "unknown"
)

// FailoverError wraps a classifier error with classification metadata.
type FailoverError struct {
	Reason  FailoverReason
	Model   string
	Status  int
	Wrapped error
}

func (e *FailoverError) Error() string {
	return fmt.Sprintf("failover(%s): model=%s status=%d: %v", e.Reason, e.Model, e.Status, e.Wrapped)
}

func (e *FailoverError) Unwrap() error {
	return e.Wrapped
}

func classifyError(model string, err error) *FailoverError {
	fe := &FailoverError{Reason: FailoverUnknown, Model: model, Wrapped: err}

	var anthropicErr *anthropic.Error
	var openaiErr *openai.Error
	switch {
	case errors.As(err, &anthropicErr):
		fe.Status = anthropicErr.StatusCode
	case errors.As(err, &openaiErr):
		fe.Status = openaiErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Reason = FailoverTimeout
	case errors.Is(err, protocoltypes.ErrNoVerdict):
		fe.Reason = FailoverFormat
	case fe.Status == http.StatusUnauthorized || fe.Status == http.StatusForbidden:
		fe.Reason = FailoverAuth
	case fe.Status == http.StatusPaymentRequired:
		fe.Reason = FailoverBilling
	case fe.Status == http.StatusTooManyRequests:
		fe.Reason = FailoverRateLimit
	case fe.Status == http.StatusServiceUnavailable || fe.Status == 529:
		fe.Reason = FailoverOverloaded
	case fe.Status == http.StatusBadRequest:
		fe.Reason = FailoverFormat
	}
	return fe
}
