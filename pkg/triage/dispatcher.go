// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/utils"
)

type Outcome string

const (
	OutcomeAbsent      Outcome = "absent"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeCooldown    Outcome = "cooldown"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeNegative    Outcome = "negative"
	OutcomeTicketed    Outcome = "ticketed"
)

// FlushResult describes what one flush attempt did.
type FlushResult struct {
	ID        string
	Key       ConversationKey
	Outcome   Outcome
	Messages  int
	Combined  string
	Verdict   Verdict
	NotifyErr error
	TicketErr error
}

// Dispatcher drains a conversation, classifies the combined text and escalates support
// requests. A flush never retries and never re-buffers.
type Dispatcher struct {
	buffer          *Buffer
	gate            *CooldownGate
	classifier      Classifier
	notifier        Notifier
	tickets         TicketSystem
	limiter         *rate.Limiter
	classifyTimeout time.Duration
	now             Clock
	onResult        func(FlushResult)
}

type DispatcherConfig struct {
	ClassifyTimeout time.Duration
	// Limiter throttles classifier calls; nil means unlimited.
	Limiter *rate.Limiter
	Now     Clock
	// OnResult observes every flush, mainly for tests and stats.
	OnResult func(FlushResult)
}

func NewDispatcher(buffer *Buffer, gate *CooldownGate, classifier Classifier, notifier Notifier, tickets TicketSystem, cfg DispatcherConfig) *Dispatcher {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		buffer:          buffer,
		gate:            gate,
		classifier:      classifier,
		notifier:        notifier,
		tickets:         tickets,
		limiter:         cfg.Limiter,
		classifyTimeout: cfg.ClassifyTimeout,
		now:             now,
		onResult:        cfg.OnResult,
	}
}

// Flush runs one flush attempt for key.
func (d *Dispatcher) Flush(ctx context.Context, key ConversationKey) FlushResult {
	res := d.flush(ctx, key)
	if d.onResult != nil {
		d.onResult(res)
	}
	return res
}

func (d *Dispatcher) flush(ctx context.Context, key ConversationKey) FlushResult {
	res := FlushResult{ID: uuid.NewString(), Key: key}

	msgs, ok := d.buffer.Drain(key)
	if !ok || len(msgs) == 0 {
		res.Outcome = OutcomeAbsent
		return res
	}
	res.Messages = len(msgs)

	first := msgs[0].Event
	channel := first.ChannelID
	if channel == "" {
		logger.WarnCF("triage", "Dropping buffer without channel", map[string]interface{}{
			"flush_id": res.ID,
			"key":      key.String(),
			"messages": len(msgs),
		})
		res.Outcome = OutcomeMalformed
		return res
	}

	now := d.now()
	if d.gate.Check(channel, now) == Discard {
		logger.InfoCF("triage", "Channel cooling down, discarding buffer", map[string]interface{}{
			"flush_id":  res.ID,
			"key":       key.String(),
			"messages":  len(msgs),
			"remaining": d.gate.Remaining(channel, now).Round(time.Second).String(),
		})
		res.Outcome = OutcomeCooldown
		return res
	}

	res.Combined = combineText(msgs)
	logger.DebugCF("triage", "Classifying buffered conversation", map[string]interface{}{
		"flush_id": res.ID,
		"key":      key.String(),
		"messages": len(msgs),
		"combined": utils.Truncate(res.Combined, 80),
	})

	verdict, err := d.classify(ctx, res.Combined)
	if err != nil {
		logger.WarnCF("triage", "Classification unavailable, dropping buffer", map[string]interface{}{
			"flush_id": res.ID,
			"key":      key.String(),
			"error":    err.Error(),
		})
		res.Outcome = OutcomeUnavailable
		return res
	}
	res.Verdict = verdict

	if !verdict.IsSupportRequest {
		logger.InfoCF("triage", "Not a support request", map[string]interface{}{
			"flush_id": res.ID,
			"key":      key.String(),
		})
		res.Outcome = OutcomeNegative
		return res
	}

	d.gate.Mark(channel, now)
	res.Outcome = OutcomeTicketed

	last := msgs[len(msgs)-1].Event
	notice := Notice{
		ChannelID:  channel,
		ThreadRef:  first.ReplyThread(),
		MessageTS:  first.MessageTS,
		SenderID:   first.SenderID,
		SenderName: first.SenderName,
		Text:       res.Combined,
		Summary:    verdict.Summary,
		Urgency:    verdict.Urgency,
	}
	if notice.ThreadRef == "" {
		notice.ThreadRef = last.ReplyThread()
	}

	if d.notifier != nil {
		if err := d.notifier.NotifyHuman(ctx, notice); err != nil {
			res.NotifyErr = err
			logger.ErrorCF("triage", "Failed to notify human", map[string]interface{}{
				"flush_id": res.ID,
				"channel":  channel,
				"error":    err.Error(),
			})
		}
	}

	if d.tickets != nil {
		requester := first.SenderName
		if requester == "" {
			requester = first.SenderID
		}
		ticket := Ticket{
			Summary:     verdict.Summary,
			Description: res.Combined,
			Urgency:     verdict.Urgency,
			Requester:   requester,
			ChannelID:   channel,
			ThreadRef:   notice.ThreadRef,
			CreatedAt:   now,
		}
		if err := d.tickets.CreateTicket(ctx, ticket); err != nil {
			res.TicketErr = err
			logger.ErrorCF("triage", "Failed to create ticket", map[string]interface{}{
				"flush_id": res.ID,
				"channel":  channel,
				"error":    err.Error(),
			})
		}
	}

	logger.InfoCF("triage", "Support request escalated", map[string]interface{}{
		"flush_id": res.ID,
		"key":      key.String(),
		"summary":  verdict.Summary,
		"urgency":  string(verdict.Urgency),
		"notified": res.NotifyErr == nil,
		"ticketed": res.TicketErr == nil,
	})
	return res
}

func (d *Dispatcher) classify(ctx context.Context, text string) (Verdict, error) {
	if d.classifier == nil {
		return Verdict{}, fmt.Errorf("no classifier configured: %w", ErrClassificationUnavailable)
	}
	if d.classifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.classifyTimeout)
		defer cancel()
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Verdict{}, fmt.Errorf("rate limiter: %v: %w", err, ErrClassificationUnavailable)
		}
	}
	verdict, err := d.classifier.Classify(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrClassificationUnavailable) {
			err = fmt.Errorf("%w: %v", ErrClassificationUnavailable, err)
		}
		return Verdict{}, err
	}
	return verdict, nil
}

func combineText(msgs []BufferedMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, " ")
}
