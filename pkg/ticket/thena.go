// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

// Package ticket files escalated support requests in Thena.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zhaopengme/triagebot/pkg/config"
	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/triage"
	"github.com/zhaopengme/triagebot/pkg/utils"
)

const requestsPath = "/rest/v2/requests"

// ErrTicketRejected is returned when Thena answers with a non-2xx status.
var ErrTicketRejected = errors.New("ticket rejected")

type Client struct {
	http              *resty.Client
	assigneeID        string
	weekendAssigneeID string
	requesterEmail    string
}

func NewClient(cfg config.TicketConfig) (*Client, error) {
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("thena auth_token is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("thena base_url is required")
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.AuthToken).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout.Std())
	}

	return &Client{
		http:              httpClient,
		assigneeID:        cfg.AssigneeID,
		weekendAssigneeID: cfg.WeekendAssigneeID,
		requesterEmail:    cfg.RequesterEmail,
	}, nil
}

type createRequest struct {
	Request requestBody `json:"request"`
}

type requestBody struct {
	Status     string            `json:"status"`
	Properties requestProperties `json:"properties"`
	Assignment *assignment       `json:"assignment,omitempty"`
	CreatedFor *createdFor       `json:"created_for,omitempty"`
	Private    bool              `json:"private"`
}

type requestProperties struct {
	System systemProperties `json:"system"`
}

type systemProperties struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Sentiment   string `json:"sentiment"`
	Urgency     string `json:"urgency"`
}

type assignment struct {
	ToUserID string `json:"to_user_id"`
}

type createdFor struct {
	UserEmail string `json:"user_email"`
}

type createResponse struct {
	ID string `json:"_id"`
}

// CreateTicket opens a Thena request for t. There is no idempotency key, so a caller
// that retries may create duplicates.
func (c *Client) CreateTicket(ctx context.Context, t triage.Ticket) error {
	payload := c.buildPayload(t)

	var created createResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&created).
		Post(requestsPath)
	if err != nil {
		return fmt.Errorf("thena request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d: %s", ErrTicketRejected, resp.StatusCode(), utils.Truncate(resp.String(), 200))
	}

	logger.InfoCF("ticket", "Thena request created", map[string]interface{}{
		"request_id": created.ID,
		"status":     resp.StatusCode(),
		"assignee":   c.assigneeFor(t.CreatedAt),
		"urgency":    payload.Request.Properties.System.Urgency,
	})
	return nil
}

func (c *Client) buildPayload(t triage.Ticket) createRequest {
	requester := utils.DisplayName(t.Requester)
	if requester == "" {
		requester = t.Requester
	}

	body := requestBody{
		Status: "OPEN",
		Properties: requestProperties{System: systemProperties{
			Title:       t.Summary,
			Description: fmt.Sprintf("**%s**: '%s'", requester, t.Description),
			Sentiment:   "Neutral",
			Urgency:     thenaUrgency(t.Urgency),
		}},
	}
	if assignee := c.assigneeFor(t.CreatedAt); assignee != "" {
		body.Assignment = &assignment{ToUserID: assignee}
	}
	if c.requesterEmail != "" {
		body.CreatedFor = &createdFor{UserEmail: c.requesterEmail}
	}
	return createRequest{Request: body}
}

// assigneeFor rotates weekend tickets to the weekend assignee when one is set.
func (c *Client) assigneeFor(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	switch at.Weekday() {
	case time.Saturday, time.Sunday:
		if c.weekendAssigneeID != "" {
			return c.weekendAssigneeID
		}
	}
	return c.assigneeID
}

func thenaUrgency(u triage.Urgency) string {
	switch u {
	case triage.UrgencyLow:
		return "Low"
	case triage.UrgencyHigh:
		return "High"
	default:
		return "Medium"
	}
}
