package triage

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupAdmitsDuplicateDeliveryOnce(t *testing.T) {
	f, err := NewDedupFilter(nil, nil)
	require.NoError(t, err)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := f.Admit(msgEvent("evt-1", "C1", "U1", "help")); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, admitted.Load())
	ok, reason := f.Admit(msgEvent("evt-1", "C1", "U1", "help"))
	assert.False(t, ok)
	assert.Equal(t, DropDuplicate, reason)
}

func TestDedupExclusionRules(t *testing.T) {
	f, err := NewDedupFilter([]string{"dean", "fordefi", "^dan$"}, nil)
	require.NoError(t, err)
	f.SetBotID("UBOT")

	tests := []struct {
		name   string
		event  Event
		reason DropReason
	}{
		{"missing delivery id", Event{ChannelID: "C1", SenderID: "U1", Text: "hi"}, DropMissingDelivery},
		{"bot itself", Event{DeliveryID: "e1", ChannelID: "C1", SenderID: "UBOT", Text: "hi"}, DropBotSelf},
		{"join", Event{DeliveryID: "e2", ChannelID: "C1", SenderID: "U1", Text: "joined", Subtype: "channel_join"}, DropStructural},
		{"edit", Event{DeliveryID: "e3", ChannelID: "C1", SenderID: "U1", Text: "x", Subtype: "message_changed"}, DropStructural},
		{"delete", Event{DeliveryID: "e4", ChannelID: "C1", SenderID: "U1", Text: "x", Subtype: "message_deleted"}, DropStructural},
		{"excluded name any case", Event{DeliveryID: "e5", ChannelID: "C1", SenderID: "U2", SenderName: "DEAN Smith @dean", Text: "hi"}, DropExcludedSender},
		{"excluded substring", Event{DeliveryID: "e6", ChannelID: "C1", SenderID: "U3", SenderName: "Ops (Fordefi)", Text: "hi"}, DropExcludedSender},
		{"empty text", Event{DeliveryID: "e7", ChannelID: "C1", SenderID: "U1", Text: "   "}, DropEmptyText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := f.Admit(tt.event)
			assert.False(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}

	ok, reason := f.Admit(Event{DeliveryID: "e8", ChannelID: "C1", SenderID: "U4", SenderName: "Danielle", Text: "wallet broken"})
	assert.True(t, ok, "anchored pattern must not match a longer name")
	assert.Equal(t, DropNone, reason)
	assert.Equal(t, 1, f.Len(), "only admitted deliveries are recorded")
}

func TestDedupRejectsBadPattern(t *testing.T) {
	_, err := NewDedupFilter([]string{"[unclosed"}, nil)
	assert.Error(t, err)
}

func TestDedupPrune(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f, err := NewDedupFilter(nil, func() time.Time { return now })
	require.NoError(t, err)

	ok, _ := f.Admit(msgEvent("old", "C1", "U1", "a"))
	require.True(t, ok)
	now = now.Add(2 * time.Hour)
	ok, _ = f.Admit(msgEvent("new", "C1", "U1", "b"))
	require.True(t, ok)

	removed := f.Prune(now.Add(-time.Hour))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, f.Len())

	ok, _ = f.Admit(msgEvent("old", "C1", "U1", "a"))
	assert.True(t, ok, "pruned ids can be admitted again")
}
