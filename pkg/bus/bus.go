// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package bus

import (
	"context"
	"errors"
	"sync"
)

var ErrBusClosed = errors.New("message bus closed")

const DefaultQueueSize = 100

// MessageBus decouples channel intake from the triage consumer.
type MessageBus struct {
	inbound chan InboundMessage
	closed  bool
	mu      sync.RWMutex
}

func NewMessageBus(size int) *MessageBus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MessageBus{
		inbound: make(chan InboundMessage, size),
	}
}

// PublishInbound enqueues msg, blocking until there is room or ctx is done.
func (mb *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return ErrBusClosed
	}
	select {
	case mb.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		if !ok {
			return InboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// Depth is the number of queued, unconsumed messages.
func (mb *MessageBus) Depth() int {
	return len(mb.inbound)
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
}
