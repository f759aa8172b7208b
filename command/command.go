package command

import (
	"context"
	"regexp"
	"strings"

	"github.com/zephyrtronium/brobot/message"
	"github.com/zephyrtronium/brobot/rolegroup"
)

// Invocation is a command invocation. An Invocation and its fields must not
// be modified or retained by any command.
type Invocation struct {
	// Message is the message which triggered the invocation. It is always
	// non-nil, but not all fields are guaranteed to be populated.
	Message *message.Received
	// Command is the parsed command.
	Command Command
	// Reply sends a message to the channel where the invocation occurred.
	Reply func(ctx context.Context, msg message.Sent)
}

// Func executes a command. Each command sends exactly one reply.
type Func func(ctx context.Context, robo *Robot, call *Invocation)

// Kind is the kind of a parsed command.
type Kind int

const (
	// NoMatch is the zero Kind, for text which is not a command.
	NoMatch Kind = iota
	// Ping is the liveness check.
	Ping
	// ColorList lists the selectable colors.
	ColorList
	// ColorSelect selects a known color.
	ColorSelect
	// InvalidColor is a color command with an unknown or missing argument.
	InvalidColor
	// FillColors gives colors to members without one.
	FillColors
	// EightBall answers a question.
	EightBall
	// Choose picks one of a list of options.
	Choose
	// Roll picks a random integer in a range.
	Roll
	// Mock repeats text in alternating case.
	Mock
	// Lenny sends the lenny face.
	Lenny
	// Benny sends the benny face.
	Benny
)

func (k Kind) String() string {
	switch k {
	case NoMatch:
		return "none"
	case Ping:
		return "ping"
	case ColorList:
		return "color-list"
	case ColorSelect:
		return "color"
	case InvalidColor:
		return "color-invalid"
	case FillColors:
		return "allcolor"
	case EightBall:
		return "8ball"
	case Choose:
		return "choose"
	case Roll:
		return "roll"
	case Mock:
		return "mock"
	case Lenny:
		return "lenny"
	case Benny:
		return "benny"
	default:
		return "unknown"
	}
}

// Command is a parsed command.
type Command struct {
	// Kind is the kind of command.
	Kind Kind
	// Verb is the command name as written, without the prefix.
	Verb string
	// Arg is the command argument with surrounding spaces trimmed.
	Arg string
	// Entry is the selected entry for ColorSelect commands.
	Entry rolegroup.Entry
}

type verb struct {
	kind  Kind
	parse *regexp.Regexp
}

// verbs is the command table. Verbs are tested in order, so an earlier verb
// may shadow a later one. Expressions are matched against text following the
// prefix and should match the entire text.
var verbs = []verb{
	{kind: Ping, parse: regexp.MustCompile(`^(?P<verb>(?i:ping))$`)},
	{kind: FillColors, parse: regexp.MustCompile(`^(?P<verb>(?i:allcolor))$`)},
	{kind: ColorList, parse: regexp.MustCompile(`^(?P<verb>(?i:color))\s+(?P<arg>(?i:list))$`)},
	// The argument to a color selection may name no color.
	{kind: ColorSelect, parse: regexp.MustCompile(`^(?P<verb>(?i:color))(?P<arg>(?s:\s.*)?)$`)},
	{kind: InvalidColor, parse: regexp.MustCompile(`^(?P<verb>(?i:color))(?P<arg>(?s:.*))$`)},
	{kind: EightBall, parse: regexp.MustCompile(`^(?P<verb>(?i:8ball|8))(?:\s+(?P<arg>(?s:.*)))?$`)},
	{kind: Choose, parse: regexp.MustCompile(`^(?P<verb>(?i:choose))(?:\s+(?P<arg>(?s:.*)))?$`)},
	{kind: Roll, parse: regexp.MustCompile(`^(?P<verb>(?i:roll))(?:\s+(?P<arg>.*))?$`)},
	{kind: Mock, parse: regexp.MustCompile(`^(?P<verb>(?i:mock))(?:\s+(?P<arg>(?s:.*)))?$`)},
	{kind: Lenny, parse: regexp.MustCompile(`^(?P<verb>(?i:lenny))$`)},
	{kind: Benny, parse: regexp.MustCompile(`^(?P<verb>(?i:benny))$`)},
}

// Parse parses a command from message text. prefix is the command prefix,
// e.g. "!". Color names are resolved against g. Text that doesn't start with
// the prefix or doesn't name a command yields false.
func Parse(prefix string, g *rolegroup.Group, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(text, prefix)
	if !ok || prefix == "" {
		return Command{}, false
	}
	for _, v := range verbs {
		u := v.parse.FindStringSubmatch(rest)
		if u == nil {
			continue
		}
		cmd := Command{Kind: v.kind}
		for i, name := range v.parse.SubexpNames() {
			switch name {
			case "verb":
				cmd.Verb = u[i]
			case "arg":
				cmd.Arg = strings.TrimSpace(u[i])
			}
		}
		if cmd.Kind == ColorSelect {
			e, ok := g.Lookup(cmd.Arg)
			if !ok {
				cmd.Kind = InvalidColor
			}
			cmd.Entry = e
		}
		return cmd, true
	}
	return Command{}, false
}
