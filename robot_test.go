package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/brobot/rolegroup"
	"github.com/zephyrtronium/brobot/rolegroup/rolegrouptest"
)

const testConfig = `
[discord]
token = "/token"
guilds = ["kessoku"]

[colors]
settle = 0

[[colors.entries]]
name = "pink"
role = "Team Pink"

[[colors.entries]]
name = "yellow"
role = "Team Yellow"
`

func testRobot(t *testing.T, dir rolegroup.Directory) *Robot {
	t.Helper()
	cfg, _, err := Load(context.Background(), strings.NewReader(testConfig))
	if err != nil {
		t.Fatalf("couldn't load config: %v", err)
	}
	robo, err := New(cfg, nil, dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("couldn't create robot: %v", err)
	}
	return robo
}

func TestNewNeedsDirectory(t *testing.T) {
	cfg, _, err := Load(context.Background(), strings.NewReader(testConfig))
	if err != nil {
		t.Fatalf("couldn't load config: %v", err)
	}
	if _, err := New(cfg, nil, nil, nil, slog.Default()); err == nil {
		t.Errorf("created robot with no way to change roles")
	}
}

func TestDiscordMessage(t *testing.T) {
	bocchi := rolegroup.Member{Guild: "kessoku", User: "bocchi"}
	other := rolegroup.Member{Guild: "sick", User: "kikuri"}
	dir := rolegrouptest.New("Team Pink", "Team Yellow")
	dir.Join(bocchi, "Bocchi", "Team Yellow")
	dir.Join(other, "Kikuri")
	robo := testRobot(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := func(guild, user string) {
		robo.discordMessage(ctx, &discordgo.MessageCreate{
			Message: &discordgo.Message{
				ID:        "1",
				GuildID:   guild,
				ChannelID: "chat",
				Content:   "!color pink",
				Author:    &discordgo.User{ID: user, Username: user},
				Timestamp: time.Unix(1, 0),
			},
		})
	}
	send(other.Guild, other.User)
	send("", bocchi.User)
	send(bocchi.Guild, bocchi.User)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if held := dir.Held(bocchi); len(held) == 1 && held[0] == "Team Pink" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if diff := cmp.Diff([]string{"Team Pink"}, dir.Held(bocchi)); diff != "" {
		t.Errorf("wrong roles for member in configured guild (+got/-want):\n%s", diff)
	}
	if got := dir.Held(other); got != nil {
		t.Errorf("member in other guild got roles %v", got)
	}
}
