// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package gateway

import (
	"context"

	"github.com/zhaopengme/triagebot/pkg/bus"
	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

// EventHandler accepts inbound events; *triage.Service satisfies it.
type EventHandler interface {
	Handle(ev triage.Event) bool
}

// Gateway moves inbound channel messages into the triage core.
type Gateway struct {
	bus     *bus.MessageBus
	handler EventHandler
}

func NewGateway(b *bus.MessageBus, handler EventHandler) *Gateway {
	return &Gateway{bus: b, handler: handler}
}

// Run consumes the bus until ctx is done or the bus is closed.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		msg, ok := g.bus.ConsumeInbound(ctx)
		if !ok {
			return nil
		}
		g.handler.Handle(ToEvent(msg))
	}
}

// ToEvent maps a channel message onto the core's event shape.
func ToEvent(msg bus.InboundMessage) triage.Event {
	ev := triage.Event{
		DeliveryID: msg.Meta(bus.MetaDeliveryID),
		SenderID:   msg.SenderID,
		SenderName: msg.Meta(bus.MetaSenderName),
		ChannelID:  msg.ChatID,
		Text:       msg.Content,
		Subtype:    msg.Meta(bus.MetaSubtype),
		ThreadRef:  msg.Meta(bus.MetaThreadTS),
		MessageTS:  msg.Meta(bus.MetaMessageTS),
		EventTime:  msg.Meta(bus.MetaEventTime),
	}
	if ev.SenderID == "" && ev.SenderName == "" {
		logger.DebugCF("gateway", "Inbound message has no sender", map[string]interface{}{
			"channel":     msg.Channel,
			"chat_id":     msg.ChatID,
			"delivery_id": ev.DeliveryID,
		})
	}
	return ev
}
