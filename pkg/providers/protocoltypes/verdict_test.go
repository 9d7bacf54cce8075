package protocoltypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaopengme/triagebot/pkg/triage"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want triage.Verdict
	}{
		{
			name: "plain",
			in:   `{"customer_query":"YES","query_summary":"withdrawal stuck","urgency":"HIGH"}`,
			want: triage.Verdict{IsSupportRequest: true, Summary: "Withdrawal stuck", Urgency: triage.UrgencyHigh},
		},
		{
			name: "fenced with prose",
			in:   "Here is my analysis:\n```json\n{\"customer_query\": \"no\", \"query_summary\": \"greeting\", \"urgency\": \"low\"}\n```",
			want: triage.Verdict{IsSupportRequest: false, Summary: "Greeting", Urgency: triage.UrgencyLow},
		},
		{
			name: "unknown urgency and long summary",
			in:   `{"customer_query":"Yes","query_summary":"user cannot sign a transaction with the browser extension today","urgency":"critical"}`,
			want: triage.Verdict{IsSupportRequest: true, Summary: "User cannot sign a transaction with the", Urgency: triage.UrgencyMedium},
		},
		{
			name: "braces inside strings",
			in:   `{"customer_query":"YES","query_summary":"error {code} shown","urgency":"MEDIUM"} trailing }`,
			want: triage.Verdict{IsSupportRequest: true, Summary: "Error {code} shown", Urgency: triage.UrgencyMedium},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVerdictErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"I think this is a support request.",
		`{"customer_query": "MAYBE"}`,
		`{"customer_query": "YES"`,
		`{"customer_query": 1}`,
	} {
		_, err := ParseVerdict(in)
		assert.Error(t, err, in)
	}
}
