package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaopengme/triagebot/pkg/config"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

func testConfig(baseURL string) config.TicketConfig {
	return config.TicketConfig{
		Enabled:           true,
		BaseURL:           baseURL,
		AuthToken:         "thena-token",
		AssigneeID:        "weekday-agent",
		WeekendAssigneeID: "weekend-agent",
		RequesterEmail:    "customer@example.com",
		Timeout:           config.Duration(5 * time.Second),
	}
}

func TestCreateTicket(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v2/requests", r.URL.Path)
		assert.Equal(t, "Bearer thena-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_id":"req_123"}`))
	}))
	defer server.Close()

	c, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	wednesday := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	err = c.CreateTicket(context.Background(), triage.Ticket{
		Summary:     "Withdrawal stuck",
		Description: "I can't withdraw it's stuck",
		Urgency:     triage.UrgencyHigh,
		Requester:   "Alex Kim @alexk",
		ChannelID:   "C1",
		CreatedAt:   wednesday,
	})
	require.NoError(t, err)

	req := captured["request"].(map[string]interface{})
	assert.Equal(t, "OPEN", req["status"])
	assert.Equal(t, false, req["private"])
	system := req["properties"].(map[string]interface{})["system"].(map[string]interface{})
	assert.Equal(t, "Withdrawal stuck", system["title"])
	assert.Equal(t, "**Alex Kim**: 'I can't withdraw it's stuck'", system["description"])
	assert.Equal(t, "Neutral", system["sentiment"])
	assert.Equal(t, "High", system["urgency"])
	assert.Equal(t, "weekday-agent", req["assignment"].(map[string]interface{})["to_user_id"])
	assert.Equal(t, "customer@example.com", req["created_for"].(map[string]interface{})["user_email"])
}

func TestCreateTicketRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid assignee"}`))
	}))
	defer server.Close()

	c, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	err = c.CreateTicket(context.Background(), triage.Ticket{Summary: "x", Requester: "U1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTicketRejected)
	assert.Contains(t, err.Error(), "invalid assignee")
}

func TestWeekendRotation(t *testing.T) {
	c, err := NewClient(testConfig("https://thena.example.com"))
	require.NoError(t, err)

	saturday := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	sunday := saturday.AddDate(0, 0, 1)
	monday := saturday.AddDate(0, 0, 2)
	assert.Equal(t, "weekend-agent", c.assigneeFor(saturday))
	assert.Equal(t, "weekend-agent", c.assigneeFor(sunday))
	assert.Equal(t, "weekday-agent", c.assigneeFor(monday))

	c.weekendAssigneeID = ""
	assert.Equal(t, "weekday-agent", c.assigneeFor(saturday))
}

func TestPayloadOmitsUnsetAssignment(t *testing.T) {
	cfg := testConfig("https://thena.example.com")
	cfg.AssigneeID, cfg.WeekendAssigneeID, cfg.RequesterEmail = "", "", ""
	c, err := NewClient(cfg)
	require.NoError(t, err)

	p := c.buildPayload(triage.Ticket{Summary: "s", Description: "d", Requester: "U123"})
	assert.Nil(t, p.Request.Assignment)
	assert.Nil(t, p.Request.CreatedFor)
	assert.Equal(t, "**U123**: 'd'", p.Request.Properties.System.Description)
	assert.Equal(t, "Medium", p.Request.Properties.System.Urgency)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.TicketConfig{BaseURL: "https://x"})
	assert.Error(t, err)
	_, err = NewClient(config.TicketConfig{AuthToken: "t"})
	assert.Error(t, err)
}
