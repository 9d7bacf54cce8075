// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package triage

import (
	"sync"
	"time"
)

// Buffer holds pending messages per conversation. A key is present only while it has
// at least one message; drains remove it whole.
type Buffer struct {
	mu      sync.Mutex
	entries map[ConversationKey][]BufferedMessage
}

func NewBuffer() *Buffer {
	return &Buffer{entries: make(map[ConversationKey][]BufferedMessage)}
}

// Append adds msg at the tail of key's sequence and returns the new length.
func (b *Buffer) Append(key ConversationKey, msg BufferedMessage) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = append(b.entries[key], msg)
	return len(b.entries[key])
}

// Drain removes and returns key's full sequence. ok is false when nothing was buffered,
// which happens when a timer fires after a concurrent drain.
func (b *Buffer) Drain(key ConversationKey) (msgs []BufferedMessage, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs, ok = b.entries[key]
	if !ok {
		return nil, false
	}
	delete(b.entries, key)
	return msgs, true
}

// Peek reports the first arrival time and size without mutating anything.
func (b *Buffer) Peek(key ConversationKey) (earliest time.Time, size int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs, ok := b.entries[key]
	if !ok || len(msgs) == 0 {
		return time.Time{}, 0, false
	}
	return msgs[0].Arrival, len(msgs), true
}

// Keys returns the conversations currently buffering.
func (b *Buffer) Keys() []ConversationKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]ConversationKey, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	return keys
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
