// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package bus

// Metadata keys set by channels on InboundMessage.
const (
	MetaDeliveryID = "delivery_id"
	MetaSubtype    = "subtype"
	MetaThreadTS   = "thread_ts"
	MetaMessageTS  = "message_ts"
	MetaSenderName = "sender_name"
	MetaEventTime  = "event_time"
)

type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns the metadata value for key, or "".
func (m InboundMessage) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}
