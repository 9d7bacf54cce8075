// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package channels

import (
	"fmt"
	"strings"

	"github.com/zhaopengme/triagebot/pkg/triage"
	"github.com/zhaopengme/triagebot/pkg/utils"
)

type escalationPost struct {
	Notice      triage.Notice
	ChannelName string
	Link        string
}

func pingText(userIDs []string, message string) string {
	parts := make([]string, 0, len(userIDs)+1)
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			parts = append(parts, fmt.Sprintf("<@%s>", id))
		}
	}
	if message != "" {
		parts = append(parts, message)
	}
	return strings.Join(parts, " ")
}

func severityLabel(u triage.Urgency) string {
	switch u {
	case triage.UrgencyLow:
		return "🟢 Low"
	case triage.UrgencyHigh:
		return "🔴 High"
	default:
		return "🟠 Medium"
	}
}

func formatEscalation(p escalationPost) string {
	n := p.Notice
	requester := utils.DisplayName(n.SenderName)
	if requester == "" {
		requester = fmt.Sprintf("<@%s>", n.SenderID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s-urgency request from %s (%s)*\n\n", severityLabel(n.Urgency), requester, utils.FriendlyChannelName(p.ChannelName))
	fmt.Fprintf(&sb, "Summary: %s\n", n.Summary)
	fmt.Fprintf(&sb, "👨‍💻💬 _%s_\n", strings.TrimSpace(n.Text))
	if p.Link != "" {
		fmt.Fprintf(&sb, "🔗 Link to Slack thread: %s\n", p.Link)
	}
	return sb.String()
}

// archiveLink builds a message URL without an API call, e.g.
// https://acme.slack.com/archives/C123/p1700000000000100.
func archiveLink(workspaceURL, channelID, ts string) string {
	if workspaceURL == "" || channelID == "" || ts == "" {
		return ""
	}
	return fmt.Sprintf("%s/archives/%s/p%s", strings.TrimRight(workspaceURL, "/"), channelID, strings.ReplaceAll(ts, ".", ""))
}
