package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type posterFunc func(ctx context.Context, ticketID, text, key string) (*Ticket, error)

func (f posterFunc) AppendMessage(ctx context.Context, ticketID, text, key string) (*Ticket, error) {
	return f(ctx, ticketID, text, key)
}

func baseTicket() Ticket {
	return Ticket{
		ID:     "t-1",
		Status: "open",
		Messages: []Message{
			{Sequence: 1, Sender: "owner", Text: "Please revise price", Time: time.Unix(100, 0)},
		},
	}
}

func TestConversationShowsPendingUntilConfirmed(t *testing.T) {
	conv := NewConversation(baseTicket(), "staff")

	var seenDuringCall []DisplayMessage
	var usedKey string
	poster := posterFunc(func(_ context.Context, ticketID, text, key string) (*Ticket, error) {
		seenDuringCall = conv.Messages()
		usedKey = key
		updated := baseTicket()
		updated.Status = "in-progress"
		updated.Messages = append(updated.Messages, Message{Sequence: 2, Sender: "staff", Text: text, Time: time.Unix(200, 0)})
		return &updated, nil
	})

	require.NoError(t, conv.Send(context.Background(), poster, "Checking now"))

	require.Len(t, seenDuringCall, 2)
	assert.Equal(t, DeliveryPending, seenDuringCall[1].State)
	assert.Zero(t, seenDuringCall[1].Sequence)
	assert.Equal(t, seenDuringCall[1].LocalID, usedKey)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, DeliveryConfirmed, msgs[1].State)
	assert.Equal(t, 2, msgs[1].Sequence)
	assert.Equal(t, time.Unix(200, 0), msgs[1].Time)
	assert.Equal(t, "in-progress", conv.Ticket().Status)
	assert.NoError(t, conv.Err())
}

func TestConversationDropsFailedMessage(t *testing.T) {
	conv := NewConversation(baseTicket(), "owner")
	boom := &APIError{Status: 403, Code: "FORBIDDEN", Message: "not allowed"}
	poster := posterFunc(func(context.Context, string, string, string) (*Ticket, error) {
		return nil, boom
	})

	err := conv.Send(context.Background(), poster, "hello?")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, conv.Messages(), 1)
	assert.True(t, errors.Is(conv.Err(), boom))
	assert.True(t, IsCode(conv.Err(), "FORBIDDEN"))
}

func TestConversationIgnoresStaleServerCopy(t *testing.T) {
	conv := NewConversation(baseTicket(), "owner")
	first := conv.Submit("one")
	second := conv.Submit("two")

	fresh := baseTicket()
	fresh.Messages = append(fresh.Messages,
		Message{Sequence: 2, Sender: "owner", Text: "one"},
		Message{Sequence: 3, Sender: "owner", Text: "two"})
	conv.Confirm(second, &fresh)

	// an older response arriving late must not roll the thread back
	stale := baseTicket()
	stale.Messages = append(stale.Messages, Message{Sequence: 2, Sender: "owner", Text: "one"})
	conv.Confirm(first, &stale)

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		assert.Equal(t, i+1, msg.Sequence)
		assert.Equal(t, DeliveryConfirmed, msg.State)
	}
}
