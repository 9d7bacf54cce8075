// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package triage

import (
	"sync"
	"time"
)

type Decision int

const (
	Proceed Decision = iota
	Discard
)

func (d Decision) String() string {
	if d == Discard {
		return "discard"
	}
	return "proceed"
}

// CooldownGate suppresses further flushes for a channel for a fixed period after a
// ticket-worthy flush.
type CooldownGate struct {
	mu       sync.Mutex
	last     map[string]time.Time
	duration time.Duration
}

func NewCooldownGate(duration time.Duration) *CooldownGate {
	return &CooldownGate{
		last:     make(map[string]time.Time),
		duration: duration,
	}
}

// Check reports Discard while channel is cooling down. It never updates state.
func (g *CooldownGate) Check(channel string, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[channel]
	if ok && now.Sub(last) < g.duration {
		return Discard
	}
	return Proceed
}

// Mark starts the cooldown for channel. Call only after a positive classification.
func (g *CooldownGate) Mark(channel string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[channel] = now
}

// Remaining is how long channel stays suppressed, zero when it is not.
func (g *CooldownGate) Remaining(channel string, now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[channel]
	if !ok {
		return 0
	}
	if rem := g.duration - now.Sub(last); rem > 0 {
		return rem
	}
	return 0
}

// Prune drops channels whose cooldown has expired.
func (g *CooldownGate) Prune(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for channel, last := range g.last {
		if now.Sub(last) >= g.duration {
			delete(g.last, channel)
			removed++
		}
	}
	return removed
}

func (g *CooldownGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}
