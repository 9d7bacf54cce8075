// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/zhaopengme/triagebot/pkg/logger"
)

// Janitor bounds the process-wide dedup and cooldown maps by pruning them on a cron
// schedule. Dedup ids older than the retention and expired cooldowns are dropped.
type Janitor struct {
	schedule  string
	retention time.Duration
	dedup     *DedupFilter
	gate      *CooldownGate
	now       Clock
}

func NewJanitor(schedule string, retention time.Duration, dedup *DedupFilter, gate *CooldownGate, now Clock) (*Janitor, error) {
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid janitor schedule %q", schedule)
	}
	if now == nil {
		now = time.Now
	}
	return &Janitor{
		schedule:  schedule,
		retention: retention,
		dedup:     dedup,
		gate:      gate,
		now:       now,
	}, nil
}

// Sweep prunes once and reports what was removed.
func (j *Janitor) Sweep() (dedupRemoved, cooldownRemoved int) {
	now := j.now()
	if j.retention > 0 {
		dedupRemoved = j.dedup.Prune(now.Add(-j.retention))
	}
	cooldownRemoved = j.gate.Prune(now)
	return dedupRemoved, cooldownRemoved
}

// Run sweeps at every tick of the schedule until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(j.schedule, j.now(), false)
		if err != nil {
			logger.ErrorCF("janitor", "Cannot compute next tick, janitor stopped", map[string]interface{}{
				"schedule": j.schedule,
				"error":    err.Error(),
			})
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		dedupRemoved, cooldownRemoved := j.Sweep()
		logger.DebugCF("janitor", "Swept triage state", map[string]interface{}{
			"dedup_removed":    dedupRemoved,
			"cooldown_removed": cooldownRemoved,
			"dedup_size":       j.dedup.Len(),
			"cooldown_size":    j.gate.Len(),
		})
	}
}
