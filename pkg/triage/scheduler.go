// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package triage

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/zhaopengme/triagebot/pkg/logger"
)

// FlushFunc runs one flush attempt for key.
type FlushFunc func(ctx context.Context, key ConversationKey)

type pendingTimer struct {
	timer *time.Timer
	dueAt time.Time
	fired bool
}

// Scheduler keeps at most one pending flush timer per conversation. Timers are never
// cancelled in normal operation; a fire re-checks eligibility and, when the buffer is
// still too young, hands over to a new timer due one window after its first message.
type Scheduler struct {
	mu        sync.Mutex
	pending   map[ConversationKey]*pendingTimer
	stopped   bool
	inflight  sync.WaitGroup
	buffer    *Buffer
	window    time.Duration
	threshold int
	flush     FlushFunc
	ctx       context.Context
	now       Clock
}

func NewScheduler(ctx context.Context, buffer *Buffer, window time.Duration, threshold int, flush FlushFunc, now Clock) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		pending:   make(map[ConversationKey]*pendingTimer),
		buffer:    buffer,
		window:    window,
		threshold: threshold,
		flush:     flush,
		ctx:       ctx,
		now:       now,
	}
}

// EnsureScheduled arms a timer for key unless one is already pending. The timer is due
// one quiet window after the first message currently buffered for key. Returns true when
// a new timer was armed.
func (s *Scheduler) EnsureScheduled(key ConversationKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, ok := s.pending[key]; ok {
		return false
	}

	now := s.now()
	earliest, _, ok := s.buffer.Peek(key)
	if !ok {
		earliest = now
	}
	s.armLocked(key, earliest.Add(s.window), now)
	return true
}

// armLocked registers a timer for key due at dueAt. s.mu must be held.
func (s *Scheduler) armLocked(key ConversationKey, dueAt, now time.Time) {
	delay := dueAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	pt := &pendingTimer{dueAt: dueAt}
	s.inflight.Add(1)
	// fire blocks on s.mu until the caller unlocks, so pt is fully built first.
	pt.timer = time.AfterFunc(delay, func() { s.fire(key, pt) })
	s.pending[key] = pt

	logger.DebugCF("triage", "Flush timer armed", map[string]interface{}{
		"key":    key.String(),
		"due_in": delay.String(),
	})
}

// Trigger fires key's pending timer now. Used when a buffer reaches the size threshold.
// Returns false when there is no pending timer or it is already firing.
func (s *Scheduler) Trigger(key ConversationKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt, ok := s.pending[key]
	if !ok || pt.fired {
		return false
	}
	if !pt.timer.Stop() {
		return false
	}
	go s.fire(key, pt)
	return true
}

func (s *Scheduler) fire(key ConversationKey, pt *pendingTimer) {
	defer s.inflight.Done()

	// Released before the flush so later messages open a new episode. A buffer that is
	// present but too young is re-armed under the same lock.
	s.mu.Lock()
	pt.fired = true
	if s.pending[key] == pt {
		delete(s.pending, key)
	}
	earliest, size, ok := s.buffer.Peek(key)
	ready := ok && s.eligible(earliest, size)
	rearmed := false
	if ok && !ready && !s.stopped {
		if _, taken := s.pending[key]; !taken {
			s.armLocked(key, earliest.Add(s.window), s.now())
			rearmed = true
		}
	}
	s.mu.Unlock()

	if !ok {
		logger.DebugCF("triage", "Timer fired on empty buffer", map[string]interface{}{
			"key": key.String(),
		})
		return
	}
	if !ready {
		logger.DebugCF("triage", "Buffer not yet eligible", map[string]interface{}{
			"key":     key.String(),
			"size":    size,
			"rearmed": rearmed,
		})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("triage", "Flush panicked", map[string]interface{}{
				"key":   key.String(),
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
		}
	}()
	s.flush(s.ctx, key)
}

func (s *Scheduler) eligible(earliest time.Time, size int) bool {
	return s.now().Sub(earliest) >= s.window || (s.threshold > 0 && size >= s.threshold)
}

// Threshold is the buffer size that makes a conversation flush early.
func (s *Scheduler) Threshold() int {
	return s.threshold
}

func (s *Scheduler) HasPending(key ConversationKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop refuses new timers and stops every timer that has not fired yet. It returns the
// number of episodes abandoned that way; flushes already running are left to finish.
func (s *Scheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	abandoned := 0
	for key, pt := range s.pending {
		if !pt.fired && pt.timer.Stop() {
			abandoned++
			s.inflight.Done()
		}
		delete(s.pending, key)
	}
	return abandoned
}

// Wait blocks until every armed timer has either been stopped or finished its flush.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
