package command

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/zephyrtronium/brobot/message"
)

// EightBallReplies is the set of answers the magic eight ball gives.
var EightBallReplies = []string{
	"It is certain",
	"It is decidedly so",
	"Without a doubt",
	"Yes definitely",
	"You may rely on it",
	"As I see it yes",
	"Most likely",
	"Outlook good",
	"Yes",
	"Signs point to yes",
	"Don't count on it",
	"My reply is no",
	"Cthulhu says no",
	"Very doubtful",
	"naw",
	"sorry bud",
	"yes, gods plan",
	"that's gonna be a no from me dawg",
	"No, stop asking.",
}

// Fixed responses of the small commands.
const (
	ChooseSyntax = "Syntax: !choose Option 1 | Option 2 | Option 3 ..."
	RollSyntax   = "Syntax: !roll [low] [high]"
	RollInvalid  = "Invalid range"
	MockSyntax   = "Syntax: !mock <text>"
	LennyFace    = "( ͡° ͜ʖ ͡°)"
	BennyFace    = "(ง ͠° ͟ل͜ ͡°)ง"
)

// EightBallCmd answers with a random decision.
func EightBallCmd(ctx context.Context, robo *Robot, call *Invocation) {
	r := EightBallReplies[robo.intN(len(EightBallReplies))]
	call.Reply(ctx, message.Format(call.Message.To, "%s", r).AsReply(call.Message.ID))
}

// ChooseCmd picks one of the |-separated options in the argument.
func ChooseCmd(ctx context.Context, robo *Robot, call *Invocation) {
	if call.Command.Arg == "" {
		call.Reply(ctx, message.Format(call.Message.To, ChooseSyntax))
		return
	}
	opts := strings.Split(call.Command.Arg, "|")
	for i, s := range opts {
		opts[i] = strings.TrimSpace(s)
	}
	call.Reply(ctx, message.Format(call.Message.To, "%s", opts[robo.intN(len(opts))]))
}

// RollCmd picks an integer uniformly from [0, 100], [0, high], or
// [low, high], depending on how many bounds the argument gives.
func RollCmd(ctx context.Context, robo *Robot, call *Invocation) {
	lo, hi, ok := rollRange(call.Command.Arg)
	switch {
	case !ok:
		call.Reply(ctx, message.Format(call.Message.To, RollSyntax))
		return
	case hi < lo || hi-lo+1 <= 0:
		call.Reply(ctx, message.Format(call.Message.To, RollInvalid))
		return
	}
	n := lo + robo.intN(hi-lo+1)
	call.Reply(ctx, message.Format(call.Message.To, "random(%d, %d) = %d", lo, hi, n))
}

func rollRange(arg string) (lo, hi int, ok bool) {
	f := strings.Fields(arg)
	b := make([]int, len(f))
	for i, s := range f {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, false
		}
		b[i] = v
	}
	switch len(b) {
	case 0:
		return 0, 100, true
	case 1:
		return 0, b[0], true
	case 2:
		return b[0], b[1], true
	default:
		return 0, 0, false
	}
}

// MockCmd repeats the argument with each letter's case chosen at random.
func MockCmd(ctx context.Context, robo *Robot, call *Invocation) {
	if call.Command.Arg == "" {
		call.Reply(ctx, message.Format(call.Message.To, MockSyntax))
		return
	}
	var b strings.Builder
	for _, r := range call.Command.Arg {
		if robo.intN(2) == 0 {
			r = unicode.ToUpper(r)
		} else {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	call.Reply(ctx, message.Format(call.Message.To, "%s", b.String()))
}

// LennyCmd sends the lenny face.
func LennyCmd(ctx context.Context, robo *Robot, call *Invocation) {
	call.Reply(ctx, message.Format(call.Message.To, LennyFace))
}

// BennyCmd sends the benny face.
func BennyCmd(ctx context.Context, robo *Robot, call *Invocation) {
	call.Reply(ctx, message.Format(call.Message.To, BennyFace))
}
