// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package triage

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

type DropReason string

const (
	DropNone            DropReason = ""
	DropDuplicate       DropReason = "duplicate"
	DropMissingDelivery DropReason = "missing_delivery_id"
	DropBotSelf         DropReason = "bot_self"
	DropStructural      DropReason = "structural_subtype"
	DropExcludedSender  DropReason = "excluded_sender"
	DropEmptyText       DropReason = "empty_text"
)

var structuralSubtypes = map[string]bool{
	"channel_join":    true,
	"group_join":      true,
	"message_changed": true,
	"message_deleted": true,
}

// DedupFilter is the only owner of the set of admitted delivery ids.
type DedupFilter struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	botID    string
	excluded []*regexp.Regexp
	now      Clock
}

// NewDedupFilter compiles the excluded-sender patterns case-insensitively.
func NewDedupFilter(excludedSenders []string, now Clock) (*DedupFilter, error) {
	if now == nil {
		now = time.Now
	}
	f := &DedupFilter{
		seen: make(map[string]time.Time),
		now:  now,
	}
	for _, pattern := range excludedSenders {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("excluded sender pattern %q: %w", pattern, err)
		}
		f.excluded = append(f.excluded, re)
	}
	return f, nil
}

// SetBotID is called once the transport learns its own user id.
func (f *DedupFilter) SetBotID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.botID = id
}

// Admit decides whether ev enters aggregation. The delivery id is recorded in the same
// critical section as the lookup, so concurrent re-deliveries admit exactly once.
func (f *DedupFilter) Admit(ev Event) (bool, DropReason) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ev.DeliveryID == "" {
		return false, DropMissingDelivery
	}
	if _, dup := f.seen[ev.DeliveryID]; dup {
		return false, DropDuplicate
	}
	if f.botID != "" && ev.SenderID == f.botID {
		return false, DropBotSelf
	}
	if structuralSubtypes[ev.Subtype] {
		return false, DropStructural
	}
	if f.isExcluded(ev) {
		return false, DropExcludedSender
	}
	if strings.TrimSpace(ev.Text) == "" {
		return false, DropEmptyText
	}

	f.seen[ev.DeliveryID] = f.now()
	return true, DropNone
}

func (f *DedupFilter) isExcluded(ev Event) bool {
	for _, re := range f.excluded {
		if (ev.SenderID != "" && re.MatchString(ev.SenderID)) ||
			(ev.SenderName != "" && re.MatchString(ev.SenderName)) {
			return true
		}
	}
	return false
}

// Prune forgets delivery ids first seen before cutoff and returns how many went.
func (f *DedupFilter) Prune(cutoff time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for id, seenAt := range f.seen {
		if seenAt.Before(cutoff) {
			delete(f.seen, id)
			removed++
		}
	}
	return removed
}

func (f *DedupFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
