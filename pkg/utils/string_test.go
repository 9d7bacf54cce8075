package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel...", Truncate("hello world", 6))
	assert.Equal(t, "日本", Truncate("日本語", 2))
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in, display string
	}{
		{"Alex Kim @alexk", "Alex Kim"},
		{"alex", "alex"},
		{"  Sam  ", "Sam"},
		{"@handle", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.display, DisplayName(tt.in), tt.in)
	}
}

func TestFriendlyChannelName(t *testing.T) {
	assert.Equal(t, "acme-support", FriendlyChannelName("ext-acme-support"))
	assert.Equal(t, "general", FriendlyChannelName("general"))
	assert.Equal(t, "trailing-", FriendlyChannelName("trailing-"))
}
