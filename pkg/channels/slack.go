// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/zhaopengme/triagebot/pkg/bus"
	"github.com/zhaopengme/triagebot/pkg/config"
	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/triage"
	"github.com/zhaopengme/triagebot/pkg/utils"
)

const (
	maxWebhookBody = 1 << 20
	publishTimeout = 2 * time.Second
)

// SlackChannel receives message events from Slack, either over the HTTP Events API or
// over Socket Mode when an app token is configured, and posts escalation replies.
type SlackChannel struct {
	config       config.SlackConfig
	notify       config.NotifyConfig
	api          *slack.Client
	socketClient *socketmode.Client
	bus          *bus.MessageBus
	botUserID    string
	teamID       string
	ctx          context.Context
	cancel       context.CancelFunc
	running      atomic.Bool

	channelNames sync.Map
}

func NewSlackChannel(cfg config.SlackConfig, notify config.NotifyConfig, messageBus *bus.MessageBus) (*SlackChannel, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot_token is required")
	}
	if cfg.AppToken == "" && cfg.SigningSecret == "" {
		return nil, fmt.Errorf("slack signing_secret is required without app_token")
	}

	opts := []slack.Option{
		slack.OptionLog(logger.SlackAdapter{Component: "slack-api"}),
	}
	if cfg.APIURL != "" {
		apiURL := cfg.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	if cfg.AppToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(cfg.AppToken))
	}

	api := slack.New(cfg.BotToken, opts...)

	c := &SlackChannel{
		config: cfg,
		notify: notify,
		api:    api,
		bus:    messageBus,
	}
	if cfg.AppToken != "" {
		c.socketClient = socketmode.New(api)
	}
	return c, nil
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) IsRunning() bool { return c.running.Load() }

// BotUserID is the bot's own user id, known after Start.
func (c *SlackChannel) BotUserID() string { return c.botUserID }

func (c *SlackChannel) SocketMode() bool { return c.socketClient != nil }

func (c *SlackChannel) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	authResp, err := c.api.AuthTestContext(c.ctx)
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	c.botUserID = authResp.UserID
	c.teamID = authResp.TeamID

	logger.InfoCF("slack", "Slack bot connected", map[string]interface{}{
		"bot_user_id": c.botUserID,
		"team":        authResp.Team,
		"socket_mode": c.SocketMode(),
	})

	if c.socketClient != nil {
		go c.eventLoop()
		go func() {
			if err := c.socketClient.RunContext(c.ctx); err != nil {
				if c.ctx.Err() == nil {
					logger.ErrorCF("slack", "Socket Mode connection error", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
		}()
	}

	c.running.Store(true)
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoC("slack", "Stopping Slack channel")
	if c.cancel != nil {
		c.cancel()
	}
	c.running.Store(false)
	return nil
}

// WebhookHandler serves the Events API endpoint: signature check, url_verification
// and message callbacks. Events are acknowledged once they are queued.
func (c *SlackChannel) WebhookHandler() http.Handler {
	return http.HandlerFunc(c.handleWebhook)
}

func (c *SlackChannel) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logger.ErrorCF("slack", "Failed to read request body", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := c.verifyRequest(r.Header, body); err != nil {
		logger.WarnCF("slack", "Rejected webhook request", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		logger.ErrorCF("slack", "Failed to parse webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	switch eventsAPIEvent.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": challenge.Challenge})
		return
	case slackevents.CallbackEvent:
		if err := c.dispatchCallback(r.Context(), eventsAPIEvent); err != nil {
			logger.WarnCF("slack", "Could not queue event, asking Slack to retry", map[string]interface{}{
				"error": err.Error(),
			})
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (c *SlackChannel) verifyRequest(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, c.config.SigningSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (c *SlackChannel) eventLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case event, ok := <-c.socketClient.Events:
			if !ok {
				return
			}
			switch event.Type {
			case socketmode.EventTypeConnected:
				logger.InfoC("slack", "Socket Mode connected")
			case socketmode.EventTypeEventsAPI:
				if event.Request != nil {
					c.socketClient.Ack(*event.Request)
				}
				eventsAPIEvent, ok := event.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if err := c.dispatchCallback(c.ctx, eventsAPIEvent); err != nil {
					logger.WarnCF("slack", "Dropped Socket Mode event", map[string]interface{}{
						"error": err.Error(),
					})
				}
			case socketmode.EventTypeSlashCommand, socketmode.EventTypeInteractive:
				if event.Request != nil {
					c.socketClient.Ack(*event.Request)
				}
			}
		}
	}
}

func (c *SlackChannel) dispatchCallback(ctx context.Context, eventsAPIEvent slackevents.EventsAPIEvent) error {
	var deliveryID string
	var eventTime int
	if cb, ok := eventsAPIEvent.Data.(*slackevents.EventsAPICallbackEvent); ok {
		deliveryID = cb.EventID
		eventTime = cb.EventTime
	}

	ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return nil
	}
	if deliveryID == "" {
		deliveryID = ev.EventTimeStamp
	}

	msg := bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: ev.User,
		ChatID:   ev.Channel,
		Content:  ev.Text,
		Metadata: map[string]string{
			bus.MetaDeliveryID: deliveryID,
			bus.MetaSubtype:    ev.SubType,
			bus.MetaThreadTS:   ev.ThreadTimeStamp,
			bus.MetaMessageTS:  ev.TimeStamp,
			bus.MetaSenderName: ev.Username,
		},
	}
	if eventTime > 0 {
		msg.Metadata[bus.MetaEventTime] = fmt.Sprintf("%d", eventTime)
	}

	logger.DebugCF("slack", "Received message", map[string]interface{}{
		"delivery_id": deliveryID,
		"sender_id":   ev.User,
		"channel_id":  ev.Channel,
		"subtype":     ev.SubType,
		"preview":     utils.Truncate(ev.Text, 50),
	})

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return c.bus.PublishInbound(pubCtx, msg)
}

// NotifyHuman pings the configured responders in the customer's thread and, when an
// escalation channel is set, posts an enriched summary there.
func (c *SlackChannel) NotifyHuman(ctx context.Context, n triage.Notice) error {
	if n.ChannelID == "" {
		return errors.New("notice has no channel")
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(pingText(c.notify.PingUserIDs, c.notify.PingMessage), false),
	}
	if n.ThreadRef != "" {
		opts = append(opts, slack.MsgOptionTS(n.ThreadRef))
	}
	if _, _, err := c.api.PostMessageContext(ctx, n.ChannelID, opts...); err != nil {
		return fmt.Errorf("failed to send slack ping: %w", err)
	}

	logger.DebugCF("slack", "Ping sent", map[string]interface{}{
		"channel_id": n.ChannelID,
		"thread_ts":  n.ThreadRef,
	})

	if c.notify.EscalationChannel == "" {
		return nil
	}

	post := formatEscalation(escalationPost{
		Notice:      n,
		ChannelName: c.channelName(ctx, n.ChannelID),
		Link:        c.messageLink(ctx, n),
	})
	if _, _, err := c.api.PostMessageContext(ctx, c.notify.EscalationChannel,
		slack.MsgOptionText(post, false),
		slack.MsgOptionDisableLinkUnfurl(),
	); err != nil {
		return fmt.Errorf("failed to post escalation: %w", err)
	}
	return nil
}

func (c *SlackChannel) channelName(ctx context.Context, channelID string) string {
	if v, ok := c.channelNames.Load(channelID); ok {
		return v.(string)
	}
	info, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		logger.WarnCF("slack", "Conversation lookup failed", map[string]interface{}{
			"channel_id": channelID,
			"error":      err.Error(),
		})
		return channelID
	}
	c.channelNames.Store(channelID, info.Name)
	return info.Name
}

func (c *SlackChannel) messageLink(ctx context.Context, n triage.Notice) string {
	ts := n.MessageTS
	if ts == "" {
		ts = n.ThreadRef
	}
	if ts == "" {
		return ""
	}
	link, err := c.api.GetPermalinkContext(ctx, &slack.PermalinkParameters{Channel: n.ChannelID, Ts: ts})
	if err == nil && link != "" {
		return link
	}
	return archiveLink(c.config.WorkspaceURL, n.ChannelID, ts)
}
