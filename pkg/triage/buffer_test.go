package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPreservesArrivalOrder(t *testing.T) {
	b := NewBuffer()
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}
	t0 := time.Now()

	assert.Equal(t, 1, b.Append(key, BufferedMessage{Text: "first", Arrival: t0}))
	assert.Equal(t, 2, b.Append(key, BufferedMessage{Text: "second", Arrival: t0.Add(time.Second)}))
	assert.Equal(t, 3, b.Append(key, BufferedMessage{Text: "third", Arrival: t0.Add(2 * time.Second)}))

	earliest, size, ok := b.Peek(key)
	require.True(t, ok)
	assert.Equal(t, t0, earliest)
	assert.Equal(t, 3, size)

	msgs, ok := b.Drain(key)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "third", msgs[2].Text)
}

func TestBufferDrainIsAtomicAndSingleShot(t *testing.T) {
	b := NewBuffer()
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}
	b.Append(key, BufferedMessage{Text: "x", Arrival: time.Now()})

	_, ok := b.Drain(key)
	require.True(t, ok)

	msgs, ok := b.Drain(key)
	assert.False(t, ok, "second drain sees nothing")
	assert.Nil(t, msgs)
	_, _, ok = b.Peek(key)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestBufferKeysAreIndependent(t *testing.T) {
	b := NewBuffer()
	a := ConversationKey{ChannelID: "C1", SenderID: "U1"}
	c := ConversationKey{ChannelID: "C1", SenderID: "U2"}
	b.Append(a, BufferedMessage{Text: "a"})
	b.Append(c, BufferedMessage{Text: "c"})

	_, ok := b.Drain(a)
	require.True(t, ok)
	assert.ElementsMatch(t, []ConversationKey{c}, b.Keys())
}
