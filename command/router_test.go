package command_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gitlab.com/zephyrtronium/pick"

	"github.com/zephyrtronium/brobot/command"
	"github.com/zephyrtronium/brobot/message"
	"github.com/zephyrtronium/brobot/rolegroup"
	"github.com/zephyrtronium/brobot/rolegroup/rolegrouptest"
)

var (
	bocchi = rolegroup.Member{Guild: "kessoku", User: "bocchi"}
	nijika = rolegroup.Member{Guild: "kessoku", User: "nijika"}
)

type replies struct {
	mu   sync.Mutex
	sent []message.Sent
}

func (r *replies) reply(ctx context.Context, msg message.Sent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *replies) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s []string
	for _, m := range r.sent {
		s = append(s, m.Text)
	}
	return s
}

func guildRoles() []string {
	r := []string{"Member", "Operator", "Auto Granted Team"}
	for _, e := range teams {
		r = append(r, e.Role)
	}
	return r
}

func newRouter(t *testing.T, dir *rolegrouptest.Directory, access command.Access) *command.Router {
	t.Helper()
	m := rolegroup.NewManager(dir)
	m.Settle = time.Millisecond
	return &command.Router{
		Prefix: "!",
		Robot: &command.Robot{
			Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
			Group:  teamGroup(t),
			Roles:  m,
			Access: access,
			// Always the last option.
			IntN: func(n int) int { return n - 1 },
		},
		Rules: []command.Rule{
			command.NewContainsAll("rebuke", "Do you kiss your mother with that mouth?", "brobot", "fuck"),
			command.NewAvatarPhrase("what is my avatar"),
		},
	}
}

func msg(from rolegroup.Member, text string) *message.Received {
	return &message.Received{
		ID:     "msg",
		Guild:  from.Guild,
		To:     "channel",
		Sender: from.User,
		Name:   from.User,
		Avatar: "https://cdn.example/avatars/" + from.User + ".png",
		Text:   text,
	}
}

func TestRouterReplies(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"ping", "!ping", []string{"Pong."}},
		{"list", "!color list", []string{"You can select: Green, Purple, Red, Blue, Yellow, Orange, White, Pink, Cyan"}},
		{"select", "!color blue", []string{"Added to Team Blue!"}},
		{"invalid", "!color puce", []string{"Pick a different Color..."}},
		{"glued", "!colorblue", []string{"Pick a different Color..."}},
		{"plain", "hello everyone", nil},
		{"unknown", "!dance", nil},
		{"rebuke", "BroBot what the FUCK", []string{"Do you kiss your mother with that mouth?"}},
		{"rebuke-half", "brobot is cool", nil},
		{"avatar", "what is my avatar", []string{"https://cdn.example/avatars/bocchi.png"}},
		{"avatar-inexact", "what is my avatar?", nil},
		{"rebuke-and-command", "!color brobot fuck", []string{"Do you kiss your mother with that mouth?", "Pick a different Color..."}},
		{"select-newline", "!color green\nthanks", []string{"Pick a different Color..."}},
		{"invalid-newline", "!color\npuce", []string{"Pick a different Color..."}},
		{"8ball", "!8ball will it rain?", []string{"No, stop asking."}},
		{"8", "!8", []string{"No, stop asking."}},
		{"choose", "!choose tea | coffee |  water ", []string{"water"}},
		{"choose-bare", "!choose", []string{command.ChooseSyntax}},
		{"roll", "!roll", []string{"random(0, 100) = 100"}},
		{"roll-high", "!roll 6", []string{"random(0, 6) = 6"}},
		{"roll-range", "!roll -3 5", []string{"random(-3, 5) = 5"}},
		{"roll-backward", "!roll 5 3", []string{command.RollInvalid}},
		{"roll-negative", "!roll -2", []string{command.RollInvalid}},
		{"roll-words", "!roll d20", []string{command.RollSyntax}},
		{"roll-many", "!roll 1 2 3", []string{command.RollSyntax}},
		{"mock", "!mock HeLLo There", []string{"hello there"}},
		{"mock-bare", "!mock", []string{command.MockSyntax}},
		{"lenny", "!lenny", []string{command.LennyFace}},
		{"benny", "!Benny", []string{command.BennyFace}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := rolegrouptest.New(guildRoles()...)
			dir.Join(bocchi, "Bocchi", "Member", "Team Red")
			r := newRouter(t, dir, command.Access{})
			var got replies
			r.Handle(context.Background(), msg(bocchi, c.text), got.reply)
			if diff := cmp.Diff(c.want, got.texts()); diff != "" {
				t.Errorf("wrong replies (+got/-want):\n%s", diff)
			}
			for _, s := range got.sent {
				if s.To != "channel" {
					t.Errorf("reply sent to %q", s.To)
				}
			}
		})
	}
}

func TestRouterAvatarReplies(t *testing.T) {
	dir := rolegrouptest.New(guildRoles()...)
	r := newRouter(t, dir, command.Access{})
	var got replies
	r.Handle(context.Background(), msg(bocchi, "what is my avatar"), got.reply)
	if len(got.sent) != 1 || got.sent[0].Reply != "msg" {
		t.Errorf("avatar response isn't a reply: %+v", got.sent)
	}
}

func TestRouterIgnoresBots(t *testing.T) {
	dir := rolegrouptest.New(guildRoles()...)
	r := newRouter(t, dir, command.Access{})
	m := msg(bocchi, "!ping")
	m.IsBot = true
	var got replies
	r.Handle(context.Background(), m, got.reply)
	if len(got.sent) != 0 {
		t.Errorf("replied to a bot: %v", got.texts())
	}
}

func TestRouterColorRoles(t *testing.T) {
	dir := rolegrouptest.New(guildRoles()...)
	dir.Join(bocchi, "Bocchi", "Member", "Team Red", "Auto Granted Team")
	r := newRouter(t, dir, command.Access{})
	var got replies
	r.Handle(context.Background(), msg(bocchi, "!color Blue"), got.reply)
	if diff := cmp.Diff([]string{"Added to Team Blue!"}, got.texts()); diff != "" {
		t.Errorf("wrong replies (+got/-want):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Member", "Team Blue"}, dir.Held(bocchi)); diff != "" {
		t.Errorf("wrong roles (+got/-want):\n%s", diff)
	}
}

func TestRouterNoRoleChanges(t *testing.T) {
	for _, text := range []string{"!color list", "!color puce", "!ping", "!color", "!color green\nthanks", "!roll", "!choose a | b"} {
		t.Run(text, func(t *testing.T) {
			dir := rolegrouptest.New(guildRoles()...)
			dir.Join(bocchi, "Bocchi", "Member", "Team Red")
			r := newRouter(t, dir, command.Access{})
			var got replies
			r.Handle(context.Background(), msg(bocchi, text), got.reply)
			if len(got.sent) != 1 {
				t.Errorf("wrong number of replies: %v", got.texts())
			}
			if c := dir.Calls(); len(c) != 0 {
				t.Errorf("directory was used: %v", c)
			}
		})
	}
}

func TestRouterColorFailure(t *testing.T) {
	dir := rolegrouptest.New(guildRoles()...)
	dir.Join(bocchi, "Bocchi", "Member", "Team Red")
	dir.Fail("add", "Team Blue", fmt.Errorf("%w: secret internal detail", rolegroup.ErrPermissionDenied))
	r := newRouter(t, dir, command.Access{})
	var got replies
	r.Handle(context.Background(), msg(bocchi, "!color blue"), got.reply)
	if diff := cmp.Diff([]string{command.ColorFailedReply}, got.texts()); diff != "" {
		t.Errorf("wrong replies (+got/-want):\n%s", diff)
	}
	for _, s := range got.texts() {
		if strings.Contains(s, "secret") {
			t.Errorf("reply leaked error detail: %q", s)
		}
	}
}

func TestRouterAccess(t *testing.T) {
	access := command.Access{Allow: []string{"Member", "Operator"}}
	cases := []struct {
		name  string
		roles []string
		want  string
		held  []string
	}{
		{"member", []string{"Member"}, "Added to Team Green!", []string{"Member", "Team Green"}},
		{"operator", []string{"Operator"}, "Added to Team Green!", []string{"Operator", "Team Green"}},
		{"stranger", nil, command.NotAllowedReply, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := rolegrouptest.New(guildRoles()...)
			dir.Join(bocchi, "Bocchi", c.roles...)
			r := newRouter(t, dir, access)
			var got replies
			r.Handle(context.Background(), msg(bocchi, "!color green"), got.reply)
			if diff := cmp.Diff([]string{c.want}, got.texts()); diff != "" {
				t.Errorf("wrong replies (+got/-want):\n%s", diff)
			}
			if diff := cmp.Diff(c.held, dir.Held(bocchi)); diff != "" {
				t.Errorf("wrong roles (+got/-want):\n%s", diff)
			}
		})
	}
}

func TestRouterAccessReadFails(t *testing.T) {
	dir := rolegrouptest.New(guildRoles()...)
	dir.Join(bocchi, "Bocchi", "Member")
	dir.Fail("read", "", errors.New("timeout"))
	r := newRouter(t, dir, command.Access{Allow: []string{"Member"}})
	var got replies
	r.Handle(context.Background(), msg(bocchi, "!color green"), got.reply)
	if diff := cmp.Diff([]string{command.ColorFailedReply}, got.texts()); diff != "" {
		t.Errorf("wrong replies (+got/-want):\n%s", diff)
	}
}

func TestRouterFill(t *testing.T) {
	access := command.Access{
		Operators: []string{"Operator"},
		Eligible:  "Member",
		Marker:    "Auto Granted Team",
	}
	dir := rolegrouptest.New(guildRoles()...)
	dir.Join(bocchi, "Bocchi", "Member")
	dir.Join(nijika, "Nijika", "Member", "Operator", "Team Yellow")
	r := newRouter(t, dir, access)
	r.Robot.Teams = pick.New(pick.FromMap(map[string]int{"pink": 1}))

	var got replies
	r.Handle(context.Background(), msg(bocchi, "!allcolor"), got.reply)
	if diff := cmp.Diff([]string{command.NotOperatorReply}, got.texts()); diff != "" {
		t.Errorf("wrong replies for non-operator (+got/-want):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Member"}, dir.Held(bocchi)); diff != "" {
		t.Errorf("non-operator changed roles (+got/-want):\n%s", diff)
	}

	got = replies{}
	r.Handle(context.Background(), msg(nijika, "!allcolor"), got.reply)
	if diff := cmp.Diff([]string{"Gave colors to 1 members: Bocchi"}, got.texts()); diff != "" {
		t.Errorf("wrong replies for operator (+got/-want):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Auto Granted Team", "Member", "Team Pink"}, dir.Held(bocchi)); diff != "" {
		t.Errorf("wrong filled roles (+got/-want):\n%s", diff)
	}

	got = replies{}
	r.Handle(context.Background(), msg(nijika, "!allcolor"), got.reply)
	if diff := cmp.Diff([]string{"Everyone already has a color."}, got.texts()); diff != "" {
		t.Errorf("wrong replies for second fill (+got/-want):\n%s", diff)
	}

	// Choosing a color for themself takes the marker away.
	got = replies{}
	r.Handle(context.Background(), msg(bocchi, "!color red"), got.reply)
	if diff := cmp.Diff([]string{"Member", "Team Red"}, dir.Held(bocchi)); diff != "" {
		t.Errorf("wrong roles after selection (+got/-want):\n%s", diff)
	}
}

func TestRouterConcurrentSelections(t *testing.T) {
	dir := rolegrouptest.New(guildRoles()...)
	dir.Join(bocchi, "Bocchi", "Member")
	r := newRouter(t, dir, command.Access{})
	var got replies
	var wg sync.WaitGroup
	for _, c := range []string{"red", "blue", "pink", "white"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Handle(context.Background(), msg(bocchi, "!color "+c), got.reply)
		}()
	}
	wg.Wait()
	if n := len(got.texts()); n != 4 {
		t.Errorf("wrong number of replies: want 4, got %d", n)
	}
	held := dir.Held(bocchi)
	g := teamGroup(t)
	n := 0
	for _, h := range held {
		if g.Has(h) {
			n++
		}
	}
	if n != 1 {
		t.Errorf("member holds %d colors: %v", n, held)
	}
}
