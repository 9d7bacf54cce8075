// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package protocoltypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zhaopengme/triagebot/pkg/triage"
)

// DefaultSystemPrompt asks the model for a JSON verdict on a combined message.
const DefaultSystemPrompt = `You are a customer service triage assistant. Your role is to analyze incoming messages
and determine if they are customer queries related to crypto or Fordefi (an institutional crypto wallet
designed for DeFi).

Consider a message as relevant if it:
- Is a question or request for information
- Asks questions about crypto transactions
- Mentions Fordefi functionality
- Reports issues with the Fordefi wallet or extension or web app on mobile or desktop
- Requests support for DeFi operations
- Request for help without other specifications

Ignore the message if it:
- Contains no question or support request
- Is just a greeting (like "hi", "hello")
- Is just an acknowledgment (like "thanks", "okay")
- Is small talk or casual conversation
- Is a response to another message without a new question

Respond with a single JSON object and nothing else:
{
  "customer_query": "YES" or "NO",
  "query_summary": "a very short summary of the query, 7 words max",
  "urgency": "LOW", "MEDIUM" or "HIGH"
}`

const maxSummaryWords = 7

var ErrNoVerdict = errors.New("no verdict object in model output")

type rawVerdict struct {
	CustomerQuery string `json:"customer_query"`
	QuerySummary  string `json:"query_summary"`
	Urgency       string `json:"urgency"`
}

// ParseVerdict extracts the first JSON object from model output. Code fences and
// surrounding prose are tolerated; a missing or unrecognised customer_query is an error.
func ParseVerdict(text string) (triage.Verdict, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return triage.Verdict{}, ErrNoVerdict
	}
	end := FindMatchingBrace(text, start)
	if end == start {
		return triage.Verdict{}, ErrNoVerdict
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(text[start:end]), &raw); err != nil {
		return triage.Verdict{}, fmt.Errorf("decoding verdict: %w", err)
	}

	var isSupport bool
	switch strings.ToUpper(strings.TrimSpace(raw.CustomerQuery)) {
	case "YES", "TRUE":
		isSupport = true
	case "NO", "FALSE":
		isSupport = false
	default:
		return triage.Verdict{}, fmt.Errorf("unrecognised customer_query %q", raw.CustomerQuery)
	}

	return triage.Verdict{
		IsSupportRequest: isSupport,
		Summary:          normalizeSummary(raw.QuerySummary),
		Urgency:          triage.ParseUrgency(raw.Urgency),
	}, nil
}

func normalizeSummary(s string) string {
	words := strings.Fields(s)
	if len(words) > maxSummaryWords {
		words = words[:maxSummaryWords]
	}
	s = strings.Join(words, " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FindMatchingBrace finds the index after the closing brace matching the opening brace at pos.
func FindMatchingBrace(text string, pos int) int {
	depth := 0
	inString := false
	for i := pos; i < len(text); i++ {
		switch c := text[i]; {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return pos
}
