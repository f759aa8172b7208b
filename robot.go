package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/brobot/command"
	"github.com/zephyrtronium/brobot/metrics"
	"github.com/zephyrtronium/brobot/rolegroup"
)

// defaultTimeout is the time limit for Discord API calls when the
// configuration doesn't give one.
const defaultTimeout = 10 * time.Second

// Robot is the overall state of the bot.
type Robot struct {
	// router handles received messages.
	router *command.Router
	// group is the color role group.
	group *rolegroup.Group
	// dir is the guild directory through which roles change.
	dir rolegroup.Directory
	// discord is the Discord session. It may be nil when the bot only serves
	// the HTTP API, e.g. in tests.
	discord *discordgo.Session
	// guilds is the set of guilds in which the bot responds.
	// If empty, the bot responds everywhere.
	guilds map[string]bool
	// rate limits outgoing messages.
	rate *rate.Limiter
	// pool runs message handling.
	pool *pool
	// metrics are the bot's metrics.
	metrics *metrics.Metrics
}

// New creates a robot from a configuration. The robot uses dir for role
// changes; if it is nil, the robot's Discord session does.
func New(cfg *Config, session *discordgo.Session, dir rolegroup.Directory, m *metrics.Metrics, log *slog.Logger) (*Robot, error) {
	if m == nil {
		m = new(metrics.Metrics)
	}
	g, err := cfg.Colors.Group()
	if err != nil {
		return nil, fmt.Errorf("couldn't build color group: %w", err)
	}
	rules, err := cfg.Rules.Rules()
	if err != nil {
		return nil, fmt.Errorf("couldn't build rules: %w", err)
	}
	if dir == nil {
		if session == nil {
			return nil, errors.New("no discord session or directory")
		}
		d := fseconds(cfg.Discord.Timeout)
		if d == 0 {
			d = defaultTimeout
		}
		dir = &directory{s: session, timeout: d}
	}
	mgr := rolegroup.NewManager(dir)
	mgr.Settle = cfg.Colors.SettleTime()
	mgr.Log = log.With(slog.String("group", g.Name()))
	mgr.Changes = m.RoleChanges
	workers := cfg.Discord.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	prefix := cfg.Commands.Prefix
	if prefix == "" {
		prefix = "!"
	}
	robo := &Robot{
		router: &command.Router{
			Prefix: prefix,
			Robot: &command.Robot{
				Log:     log,
				Group:   g,
				Roles:   mgr,
				Access:  cfg.Colors.Access(),
				Teams:   cfg.Colors.Teams(),
				Metrics: *m,
			},
			Rules: rules,
		},
		group:   g,
		dir:     dir,
		discord: session,
		guilds:  make(map[string]bool, len(cfg.Discord.Guilds)),
		rate:    rate.NewLimiter(rate.Inf, 1),
		pool:    newPool(workers),
		metrics: m,
	}
	for _, id := range cfg.Discord.Guilds {
		robo.guilds[id] = true
	}
	if r := cfg.Discord.Rate; r.Every > 0 && r.Num > 0 {
		robo.rate = rate.NewLimiter(rate.Every(fseconds(r.Every/float64(r.Num))), r.Num)
	}
	return robo, nil
}

// Run connects to Discord and serves the HTTP API if listen is not empty.
// It returns when ctx is canceled or either fails.
func (robo *Robot) Run(ctx context.Context, listen string) error {
	group, ctx := errgroup.WithContext(ctx)
	if robo.discord != nil {
		group.Go(func() error { return robo.runDiscord(ctx) })
	}
	if listen != "" {
		group.Go(func() error {
			return robo.api(ctx, listen, http.NewServeMux(), robo.metrics.Collectors())
		})
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		// If the first error is context canceled, then we are shutting down
		// normally in response to a sigint.
		err = nil
	}
	return err
}

// timeout gives a context for a single outgoing request.
func timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
