package command

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zephyrtronium/brobot/message"
	"github.com/zephyrtronium/brobot/rolegroup"
)

// Fixed color command responses.
const (
	InvalidColorReply = "Pick a different Color..."
	ColorFailedReply  = "Couldn't update your color, try again later."
	NotAllowedReply   = "You aren't allowed to pick a color."
	NotOperatorReply  = "Only operators can do that."
)

// ListColors lists the selectable colors.
func ListColors(ctx context.Context, robo *Robot, call *Invocation) {
	s := strings.Join(robo.Group.Displays(), ", ")
	call.Reply(ctx, message.Format(call.Message.To, "You can select: %s", s))
}

// InvalidColorCmd responds to a color command naming no known color.
func InvalidColorCmd(ctx context.Context, robo *Robot, call *Invocation) {
	call.Reply(ctx, message.Format(call.Message.To, InvalidColorReply))
}

// SelectColor makes the invoker's color the one named by the command,
// removing any other color they have.
func SelectColor(ctx context.Context, robo *Robot, call *Invocation) {
	who := rolegroup.Member{Guild: call.Message.Guild, User: call.Message.Sender}
	log := robo.Log.With(slog.String("member", who.User), slog.String("color", call.Command.Entry.Name))
	if len(robo.Access.Allow) != 0 {
		ok, err := robo.holdsAny(ctx, who, robo.Access.Allow)
		if err != nil {
			log.ErrorContext(ctx, "couldn't check access", slog.Any("err", err))
			call.Reply(ctx, message.Format(call.Message.To, ColorFailedReply))
			return
		}
		if !ok {
			log.InfoContext(ctx, "color selection not allowed")
			call.Reply(ctx, message.Format(call.Message.To, NotAllowedReply))
			return
		}
	}
	start := time.Now()
	r := robo.Roles.Select(ctx, who, robo.Group, call.Command.Entry.Role)
	observe(robo.Metrics.SelectLatency, time.Since(start).Seconds(), strconv.FormatBool(r.Succeeded))
	if !r.Succeeded {
		log.WarnContext(ctx, "color selection failed", slog.Any("err", r.Err()), slog.String("added", r.Added))
		call.Reply(ctx, message.Format(call.Message.To, ColorFailedReply))
		return
	}
	call.Reply(ctx, message.Format(call.Message.To, "Added to Team %s!", call.Command.Entry.Display()))
}

// FillColorsCmd gives a random color to every eligible member who has none.
func FillColorsCmd(ctx context.Context, robo *Robot, call *Invocation) {
	who := rolegroup.Member{Guild: call.Message.Guild, User: call.Message.Sender}
	ok, err := robo.holdsAny(ctx, who, robo.Access.Operators)
	if err != nil {
		robo.Log.ErrorContext(ctx, "couldn't check access", slog.Any("err", err))
		call.Reply(ctx, message.Format(call.Message.To, ColorFailedReply))
		return
	}
	if !ok {
		call.Reply(ctx, message.Format(call.Message.To, NotOperatorReply))
		return
	}
	r, err := robo.Roles.Fill(ctx, who.Guild, robo.Group, robo.Access.Eligible, robo.Access.Marker, robo.choose)
	if err != nil {
		robo.Log.ErrorContext(ctx, "couldn't fill colors", slog.Any("err", err))
		call.Reply(ctx, message.Format(call.Message.To, ColorFailedReply))
		return
	}
	names := make([]string, len(r.Filled))
	for i, f := range r.Filled {
		names[i] = f.Name
	}
	robo.Log.InfoContext(ctx, "filled colors", slog.Int("filled", len(r.Filled)), slog.Int("failed", len(r.Errors)))
	switch {
	case len(r.Filled) == 0 && len(r.Errors) == 0:
		call.Reply(ctx, message.Format(call.Message.To, "Everyone already has a color."))
	case len(r.Errors) == 0:
		call.Reply(ctx, message.Format(call.Message.To, "Gave colors to %d members: %s", len(names), strings.Join(names, ", ")))
	default:
		call.Reply(ctx, message.Format(call.Message.To, "Gave colors to %d members (%d changes failed): %s", len(names), len(r.Errors), strings.Join(names, ", ")))
	}
}

// holdsAny reports whether who holds any of roles.
func (robo *Robot) holdsAny(ctx context.Context, who rolegroup.Member, roles []string) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	held, err := robo.Roles.Dir.MemberRoles(ctx, who)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(held, func(r string) bool { return slices.Contains(roles, r) }), nil
}
