package message

import (
	"fmt"
	"strings"
	"time"
)

// Received is a message received from a guild.
type Received struct {
	// ID is the unique ID of the message.
	ID string
	// Guild is the ID of the guild in which the message was sent.
	Guild string
	// To is the ID of the channel to which the message was sent.
	To string
	// Sender is the user ID of the message sender.
	Sender string
	// Name is the display name of the message sender.
	Name string
	// Avatar is the URL of the sender's avatar image.
	Avatar string
	// Text is the text of the message.
	Text string
	// Timestamp is the timestamp of the message as milliseconds since the
	// Unix epoch.
	Timestamp int64
	// IsBot indicates whether the sender is a bot account.
	IsBot bool
}

func (m *Received) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Sent is a message to be sent to a service.
type Sent struct {
	// Reply is a message to reply to. If empty, the message is not interpreted
	// as a reply.
	Reply string
	// To is the channel to which the message is sent.
	To string
	// Text is the message text.
	Text string
}

// AsReply returns a copy of the message as a reply to the given message ID.
func (m Sent) AsReply(reply string) Sent {
	m.Reply = reply
	return m
}

// formatString is a type to prevent misuse of format strings passed to [Format].
type formatString string

// Format constructs a message to send from a format string literal and
// formatting arguments.
func Format(to string, f formatString, args ...any) Sent {
	return Sent{
		To:   to,
		Text: strings.TrimSpace(fmt.Sprintf(string(f), args...)),
	}
}
