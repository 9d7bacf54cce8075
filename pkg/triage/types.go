// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

// Package triage aggregates rapid-fire chat messages per conversation, debounces them
// into a single classification call and turns support requests into a human ping plus
// a ticket.
package triage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrClassificationUnavailable is returned (wrapped) by classifiers on timeout,
// transport error or malformed output.
var ErrClassificationUnavailable = errors.New("classification unavailable")

// ConversationKey identifies one aggregation unit.
type ConversationKey struct {
	ChannelID string
	SenderID  string
}

func (k ConversationKey) String() string {
	return k.ChannelID + ":" + k.SenderID
}

// Event is the minimal inbound message the core needs.
type Event struct {
	DeliveryID string
	SenderID   string
	SenderName string
	ChannelID  string
	Text       string
	Subtype    string
	// ThreadRef is the parent thread timestamp, empty for top-level messages.
	ThreadRef string
	MessageTS string
	EventTime string
}

// Key returns the conversation the event belongs to. Events without a sender id
// aggregate under the display name.
func (e Event) Key() ConversationKey {
	sender := e.SenderID
	if sender == "" {
		sender = e.SenderName
	}
	return ConversationKey{ChannelID: e.ChannelID, SenderID: sender}
}

// ReplyThread is where a response to this message belongs.
func (e Event) ReplyThread() string {
	if e.ThreadRef != "" {
		return e.ThreadRef
	}
	return e.MessageTS
}

// BufferedMessage is immutable once appended.
type BufferedMessage struct {
	Text    string
	Arrival time.Time
	Event   Event
}

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// ParseUrgency is lenient with case and whitespace; unknown values become MEDIUM.
func ParseUrgency(s string) Urgency {
	switch Urgency(strings.ToUpper(strings.TrimSpace(s))) {
	case UrgencyLow:
		return UrgencyLow
	case UrgencyHigh:
		return UrgencyHigh
	default:
		return UrgencyMedium
	}
}

// Verdict is the structured classifier output.
type Verdict struct {
	IsSupportRequest bool
	Summary          string
	Urgency          Urgency
}

// Notice is what a human is pinged with.
type Notice struct {
	ChannelID  string
	ThreadRef  string
	MessageTS  string
	SenderID   string
	SenderName string
	Text       string
	Summary    string
	Urgency    Urgency
}

// Ticket is handed to the ticket system. No idempotency key is carried.
type Ticket struct {
	Summary     string
	Description string
	Urgency     Urgency
	Requester   string
	ChannelID   string
	ThreadRef   string
	CreatedAt   time.Time
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

type Notifier interface {
	NotifyHuman(ctx context.Context, notice Notice) error
}

type TicketSystem interface {
	CreateTicket(ctx context.Context, ticket Ticket) error
}

// Clock is swapped in tests.
type Clock func() time.Time
