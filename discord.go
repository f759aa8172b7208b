package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zephyrtronium/brobot/message"
	"github.com/zephyrtronium/brobot/rolegroup"
)

// intents are the gateway intents the bot needs. Members and message content
// are privileged and must be enabled for the application.
const intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMembers |
	discordgo.IntentGuildMessages |
	discordgo.IntentMessageContent

// NewDiscord creates a Discord session for a bot token.
func NewDiscord(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("couldn't create Discord session: %w", err)
	}
	s.Identify.Intents = intents
	s.StateEnabled = true
	return s, nil
}

// runDiscord handles messages from Discord until ctx is done.
func (robo *Robot) runDiscord(ctx context.Context) error {
	rm := robo.discord.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageCreate) {
		robo.discordMessage(ctx, ev)
	})
	defer rm()
	rr := robo.discord.AddHandler(func(s *discordgo.Session, ev *discordgo.Ready) {
		slog.InfoContext(ctx, "connected to Discord",
			slog.String("user", ev.User.Username),
			slog.Int("guilds", len(ev.Guilds)),
		)
	})
	defer rr()
	if err := robo.discord.Open(); err != nil {
		return fmt.Errorf("couldn't connect to Discord: %w", err)
	}
	<-ctx.Done()
	if err := robo.discord.Close(); err != nil {
		slog.ErrorContext(ctx, "closing Discord session", slog.Any("err", err))
	}
	return ctx.Err()
}

// discordMessage processes a message creation event from Discord.
func (robo *Robot) discordMessage(ctx context.Context, ev *discordgo.MessageCreate) {
	if ev.GuildID == "" {
		// Direct message. Roles only exist in guilds.
		return
	}
	if len(robo.guilds) != 0 && !robo.guilds[ev.GuildID] {
		return
	}
	m := message.FromDiscord(ev)
	// Run the rest in a worker so that we don't block the event loop.
	work := func(ctx context.Context) {
		robo.router.Handle(ctx, m, robo.sendDiscord)
	}
	robo.enqueue(ctx, work)
}

// sendDiscord sends a message to Discord after waiting for the rate limit.
func (robo *Robot) sendDiscord(ctx context.Context, msg message.Sent) {
	if err := robo.rate.Wait(ctx); err != nil {
		slog.DebugContext(ctx, "dropped Discord message",
			slog.String("to", msg.To),
			slog.String("reply", msg.Reply),
			slog.Any("err", err),
		)
		return
	}
	if robo.discord == nil {
		return
	}
	send := &discordgo.MessageSend{
		Content: msg.Text,
		// Never ping anyone, even when the text looks like a mention.
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if msg.Reply != "" {
		send.Reference = &discordgo.MessageReference{MessageID: msg.Reply, ChannelID: msg.To}
	}
	if _, err := robo.discord.ChannelMessageSendComplex(msg.To, send, discordgo.WithContext(ctx)); err != nil {
		slog.ErrorContext(ctx, "couldn't send Discord message",
			slog.String("to", msg.To),
			slog.String("reply", msg.Reply),
			slog.Any("err", err),
		)
	}
}

// directory is a [rolegroup.Directory] backed by the Discord API.
type directory struct {
	s *discordgo.Session
	// timeout is the time limit for each API call. Zero means no limit.
	timeout time.Duration
}

// roles returns the guild's roles. It prefers the session's
// state and falls back to the API.
func (d *directory) roles(ctx context.Context, guild string) ([]*discordgo.Role, error) {
	if r := d.stateRoles(guild); len(r) != 0 {
		return r, nil
	}
	ctx, cancel := timeout(ctx, d.timeout)
	defer cancel()
	r, err := d.s.GuildRoles(guild, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("couldn't get roles for guild %s: %w", guild, discordError(err))
	}
	return r, nil
}

// stateRoles copies the roles of guild from the state cache.
func (d *directory) stateRoles(guild string) []*discordgo.Role {
	if !d.s.StateEnabled || d.s.State == nil {
		return nil
	}
	g, err := d.s.State.Guild(guild)
	if err != nil {
		return nil
	}
	d.s.State.RLock()
	defer d.s.State.RUnlock()
	return slices.Clone(g.Roles)
}

// roleID resolves a role name to its ID.
func (d *directory) roleID(ctx context.Context, guild, name string) (string, error) {
	r, err := d.roles(ctx, guild)
	if err != nil {
		return "", err
	}
	for _, v := range r {
		if v.Name == name {
			return v.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no role named %q in guild %s", rolegroup.ErrRoleNotFound, name, guild)
}

// roleNames maps role IDs to names.
func roleNames(all []*discordgo.Role, ids []string) []string {
	byID := make(map[string]string, len(all))
	for _, v := range all {
		byID[v.ID] = v.Name
	}
	r := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			r = append(r, n)
		}
	}
	return r
}

func (d *directory) MemberRoles(ctx context.Context, m rolegroup.Member) ([]string, error) {
	all, err := d.roles(ctx, m.Guild)
	if err != nil {
		return nil, err
	}
	// Always ask the API. The state can lag behind our own changes.
	ctx, cancel := timeout(ctx, d.timeout)
	defer cancel()
	mem, err := d.s.GuildMember(m.Guild, m.User, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("couldn't get member %s: %w", m.User, discordError(err))
	}
	return roleNames(all, mem.Roles), nil
}

func (d *directory) AddRole(ctx context.Context, m rolegroup.Member, role string) error {
	id, err := d.roleID(ctx, m.Guild, role)
	if err != nil {
		return err
	}
	ctx, cancel := timeout(ctx, d.timeout)
	defer cancel()
	if err := d.s.GuildMemberRoleAdd(m.Guild, m.User, id, discordgo.WithContext(ctx)); err != nil {
		return discordError(err)
	}
	return nil
}

func (d *directory) RemoveRole(ctx context.Context, m rolegroup.Member, role string) error {
	id, err := d.roleID(ctx, m.Guild, role)
	if err != nil {
		return err
	}
	ctx, cancel := timeout(ctx, d.timeout)
	defer cancel()
	if err := d.s.GuildMemberRoleRemove(m.Guild, m.User, id, discordgo.WithContext(ctx)); err != nil {
		return discordError(err)
	}
	return nil
}

// membersPage is the largest page of members the API gives.
const membersPage = 1000

func (d *directory) Members(ctx context.Context, guild string) ([]rolegroup.Holder, error) {
	all, err := d.roles(ctx, guild)
	if err != nil {
		return nil, err
	}
	var r []rolegroup.Holder
	after := ""
	for {
		page, err := d.membersPage(ctx, guild, after)
		if err != nil {
			return r, err
		}
		for _, mem := range page {
			if mem.User == nil || mem.User.Bot {
				continue
			}
			r = append(r, rolegroup.Holder{
				Member: rolegroup.Member{Guild: guild, User: mem.User.ID},
				Name:   mem.DisplayName(),
				Roles:  roleNames(all, mem.Roles),
			})
		}
		if len(page) < membersPage {
			return r, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (d *directory) membersPage(ctx context.Context, guild, after string) ([]*discordgo.Member, error) {
	ctx, cancel := timeout(ctx, d.timeout)
	defer cancel()
	page, err := d.s.GuildMembers(guild, after, membersPage, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("couldn't list members of guild %s: %w", guild, discordError(err))
	}
	return page, nil
}

// discordError classifies an error from the Discord API into the role
// directory's errors.
func discordError(err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownRole:
			return fmt.Errorf("%w: %w", rolegroup.ErrRoleNotFound, err)
		case discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%w: %w", rolegroup.ErrPermissionDenied, err)
		}
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", rolegroup.ErrPermissionDenied, err)
	}
	return err
}
