package triage

import (
	"context"
	"sync"
)

type fakeClassifier struct {
	mu      sync.Mutex
	texts   []string
	verdict Verdict
	err     error
	block   chan struct{}
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		}
	}
	return f.verdict, f.err
}

func (f *fakeClassifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func (f *fakeClassifier) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (f *fakeNotifier) NotifyHuman(_ context.Context, n Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return f.err
}

func (f *fakeNotifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

type fakeTickets struct {
	mu      sync.Mutex
	tickets []Ticket
	err     error
}

func (f *fakeTickets) CreateTicket(_ context.Context, t Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, t)
	return f.err
}

func (f *fakeTickets) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets)
}

func positive() Verdict {
	return Verdict{IsSupportRequest: true, Summary: "Withdrawal stuck", Urgency: UrgencyHigh}
}

func msgEvent(id, channel, sender, text string) Event {
	return Event{
		DeliveryID: id,
		ChannelID:  channel,
		SenderID:   sender,
		Text:       text,
		MessageTS:  "1700000000." + id,
	}
}
