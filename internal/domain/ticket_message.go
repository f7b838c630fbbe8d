package domain

import "time"

// MessageSender indicates which side of the conversation authored a message.
type MessageSender string

const (
	SenderOwner MessageSender = "owner"
	SenderStaff MessageSender = "staff"
)

// Message is one entry in a ticket thread. Sequence and Time are assigned by the service.
type Message struct {
	Sequence int
	Sender   MessageSender
	Text     string
	Time     time.Time
}
