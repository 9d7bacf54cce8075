// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zhaopengme/triagebot/pkg/logger"
)

type Options struct {
	QuietWindow     time.Duration
	BatchSize       int
	Cooldown        time.Duration
	ExcludedSenders []string
	ClassifyTimeout time.Duration
	// ClassifyRPS <= 0 disables classifier throttling.
	ClassifyRPS     float64
	ClassifyBurst   int
	DedupRetention  time.Duration
	// JanitorSchedule is a cron expression; empty disables pruning.
	JanitorSchedule string
	Now             Clock
	OnResult        func(FlushResult)
}

// Stats is a point-in-time view of the core for health reporting.
type Stats struct {
	Buffering     int             `json:"buffering"`
	PendingTimers int             `json:"pending_timers"`
	DedupEntries  int             `json:"dedup_entries"`
	Cooldowns     int             `json:"cooldowns"`
	Admitted      int64           `json:"admitted"`
	Dropped       int64           `json:"dropped"`
	Flushes       map[Outcome]int `json:"flushes"`
}

// Service owns the triage state and wires the components together. Each map lives in
// exactly one component and is reached only through that component's methods.
type Service struct {
	filter     *DedupFilter
	buffer     *Buffer
	scheduler  *Scheduler
	gate       *CooldownGate
	dispatcher *Dispatcher
	janitor    *Janitor
	now        Clock

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	admitted atomic.Int64
	dropped  atomic.Int64

	statsMu  sync.Mutex
	outcomes map[Outcome]int
	onResult func(FlushResult)
}

func NewService(opts Options, classifier Classifier, notifier Notifier, tickets TicketSystem) (*Service, error) {
	if opts.QuietWindow <= 0 {
		return nil, errors.New("quiet window must be > 0")
	}
	if opts.BatchSize <= 0 {
		return nil, errors.New("batch size must be > 0")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	filter, err := NewDedupFilter(opts.ExcludedSenders, now)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		filter:   filter,
		buffer:   NewBuffer(),
		gate:     NewCooldownGate(opts.Cooldown),
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
		outcomes: make(map[Outcome]int),
		onResult: opts.OnResult,
	}

	var limiter *rate.Limiter
	if opts.ClassifyRPS > 0 {
		burst := opts.ClassifyBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.ClassifyRPS), burst)
	}

	s.dispatcher = NewDispatcher(s.buffer, s.gate, classifier, notifier, tickets, DispatcherConfig{
		ClassifyTimeout: opts.ClassifyTimeout,
		Limiter:         limiter,
		Now:             now,
		OnResult:        s.record,
	})
	s.scheduler = NewScheduler(ctx, s.buffer, opts.QuietWindow, opts.BatchSize, func(ctx context.Context, key ConversationKey) {
		s.dispatcher.Flush(ctx, key)
	}, now)

	if opts.JanitorSchedule != "" {
		s.janitor, err = NewJanitor(opts.JanitorSchedule, opts.DedupRetention, filter, s.gate, now)
		if err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

// Start launches background maintenance. Flush timers run independently of ctx.
func (s *Service) Start(ctx context.Context) {
	if s.janitor != nil {
		go s.janitor.Run(ctx)
	}
}

// SetBotID lets the filter drop the bot's own messages.
func (s *Service) SetBotID(id string) {
	s.filter.SetBotID(id)
}

// Handle admits ev into aggregation and makes sure a flush is scheduled. It returns
// false when the event was dropped.
func (s *Service) Handle(ev Event) bool {
	if s.closed.Load() {
		return false
	}

	ok, reason := s.filter.Admit(ev)
	if !ok {
		s.dropped.Add(1)
		logger.DebugCF("triage", "Event dropped", map[string]interface{}{
			"delivery_id": ev.DeliveryID,
			"channel":     ev.ChannelID,
			"sender":      ev.SenderID,
			"reason":      string(reason),
		})
		return false
	}
	s.admitted.Add(1)

	key := ev.Key()
	size := s.buffer.Append(key, BufferedMessage{
		Text:    ev.Text,
		Arrival: s.now(),
		Event:   ev,
	})
	s.scheduler.EnsureScheduled(key)
	if size >= s.scheduler.Threshold() {
		s.scheduler.Trigger(key)
	}

	logger.DebugCF("triage", "Message buffered", map[string]interface{}{
		"key":         key.String(),
		"delivery_id": ev.DeliveryID,
		"buffered":    size,
	})
	return true
}

func (s *Service) record(res FlushResult) {
	s.statsMu.Lock()
	s.outcomes[res.Outcome]++
	s.statsMu.Unlock()
	if s.onResult != nil {
		s.onResult(res)
	}
}

func (s *Service) Stats() Stats {
	s.statsMu.Lock()
	flushes := make(map[Outcome]int, len(s.outcomes))
	for k, v := range s.outcomes {
		flushes[k] = v
	}
	s.statsMu.Unlock()

	return Stats{
		Buffering:     s.buffer.Len(),
		PendingTimers: s.scheduler.Pending(),
		DedupEntries:  s.filter.Len(),
		Cooldowns:     s.gate.Len(),
		Admitted:      s.admitted.Load(),
		Dropped:       s.dropped.Load(),
		Flushes:       flushes,
	}
}

// Shutdown stops intake, abandons timers that have not fired and waits for running
// flushes. If ctx expires first, running flushes are cancelled.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	abandoned := s.scheduler.Stop()
	if abandoned > 0 {
		keys := s.buffer.Keys()
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.String())
		}
		logger.WarnCF("triage", "Abandoned buffered conversations on shutdown", map[string]interface{}{
			"conversations": abandoned,
			"keys":          names,
		})
	}

	err := s.scheduler.Wait(ctx)
	s.cancel()
	if err != nil {
		return fmt.Errorf("waiting for in-flight flushes: %w", err)
	}
	return nil
}
