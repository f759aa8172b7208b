// Package command implements the bot's text commands and rules.
package command

import (
	"context"
	"log/slog"

	"github.com/zephyrtronium/brobot/message"
)

// Router dispatches messages to rules and commands.
type Router struct {
	// Prefix is the prefix that marks a message as a command.
	Prefix string
	// Robot is the state given to commands.
	Robot *Robot
	// Rules is the text rules to evaluate on every message.
	Rules []Rule
}

var handlers = map[Kind]Func{
	Ping:         PingCmd,
	ColorList:    ListColors,
	ColorSelect:  SelectColor,
	InvalidColor: InvalidColorCmd,
	FillColors:   FillColorsCmd,
	EightBall:    EightBallCmd,
	Choose:       ChooseCmd,
	Roll:         RollCmd,
	Mock:         MockCmd,
	Lenny:        LennyCmd,
	Benny:        BennyCmd,
}

// Handle processes a received message. Every matching rule responds, and if
// the message is a command, the command responds exactly once. Messages from
// bots are ignored.
func (r *Router) Handle(ctx context.Context, msg *message.Received, reply func(context.Context, message.Sent)) {
	if msg.IsBot {
		return
	}
	robo := *r.Robot
	robo.Log = robo.Log.With(slog.String("trace", msg.ID), slog.String("in", msg.Guild))
	observe(robo.Metrics.MessagesCount, 1)
	for _, rule := range r.Rules {
		if s, ok := rule.Respond(msg); ok {
			robo.Log.InfoContext(ctx, "rule", slog.String("name", rule.Name()))
			observe(robo.Metrics.RuleCount, 1, rule.Name())
			reply(ctx, s)
		}
	}
	cmd, ok := Parse(r.Prefix, robo.Group, msg.Text)
	if !ok {
		return
	}
	fn := handlers[cmd.Kind]
	if fn == nil {
		return
	}
	robo.Log.InfoContext(ctx, "command",
		slog.String("name", cmd.Kind.String()),
		slog.String("verb", cmd.Verb),
		slog.String("arg", cmd.Arg),
	)
	observe(robo.Metrics.CommandCount, 1, cmd.Kind.String())
	call := Invocation{
		Message: msg,
		Command: cmd,
		Reply:   reply,
	}
	fn(ctx, &robo, &call)
}
