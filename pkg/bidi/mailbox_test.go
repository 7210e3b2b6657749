package bidi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxDeliversInFIFOOrder(t *testing.T) {
	t.Parallel()

	m := newMailbox()
	require.True(t, m.Send(Message{Type: MessageTypePing}))
	require.True(t, m.Send(Message{Type: MessageTypePong}))

	first, ok := m.Receive()
	require.True(t, ok)
	assert.Equal(t, MessageTypePing, first.Type)

	second, ok := m.Receive()
	require.True(t, ok)
	assert.Equal(t, MessageTypePong, second.Type)
}

func TestMailboxReceiveBlocksUntilSend(t *testing.T) {
	t.Parallel()

	m := newMailbox()
	done := make(chan Message, 1)
	go func() {
		msg, ok := m.Receive()
		if ok {
			done <- msg
		}
	}()

	select {
	case <-done:
		t.Fatal("Receive returned before any Send")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, m.Send(Message{Type: MessageTypePing}))
	select {
	case msg := <-done:
		assert.Equal(t, MessageTypePing, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("Receive never woke after Send")
	}
}

func TestMailboxCloseUnblocksReceiveAndRejectsSend(t *testing.T) {
	t.Parallel()

	m := newMailbox()
	done := make(chan bool, 1)
	go func() {
		_, ok := m.Receive()
		done <- ok
	}()

	m.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Receive never unblocked after Close")
	}

	assert.False(t, m.Send(Message{Type: MessageTypePing}))
}

func TestMailboxCloseDrainsQueuedMessagesFirst(t *testing.T) {
	t.Parallel()

	m := newMailbox()
	require.True(t, m.Send(Message{Type: MessageTypePing}))
	m.Close()

	msg, ok := m.Receive()
	require.True(t, ok)
	assert.Equal(t, MessageTypePing, msg.Type)

	_, ok = m.Receive()
	assert.False(t, ok)
}
