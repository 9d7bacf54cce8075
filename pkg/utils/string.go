// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package utils

import "strings"

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// DisplayName strips a bridged handle suffix: "Alex Kim @alexk" becomes "Alex Kim".
func DisplayName(name string) string {
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// FriendlyChannelName drops the first dash-separated segment of a channel name,
// so "ext-acme-support" becomes "acme-support". Names without a dash are unchanged.
func FriendlyChannelName(name string) string {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) < 2 || parts[1] == "" {
		return name
	}
	return parts[1]
}
