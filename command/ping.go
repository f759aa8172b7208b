package command

import (
	"context"

	"github.com/zephyrtronium/brobot/message"
)

// PingReply is the response to a ping.
const PingReply = "Pong."

// PingCmd replies to a ping.
func PingCmd(ctx context.Context, robo *Robot, call *Invocation) {
	call.Reply(ctx, message.Format(call.Message.To, PingReply))
}
