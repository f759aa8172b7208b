package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/zephyrtronium/brobot/metrics"
)

var app = cli.Command{
	Name:  "brobot",
	Usage: "Discord bot for exclusive color roles",

	Flags: []cli.Flag{
		&flagConfig,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:   "colors",
			Usage:  "Print the configured colors",
			Action: cliColors,
		},
		{
			Name:   "check",
			Usage:  "Validate the configuration without connecting",
			Action: cliCheck,
		},
	},
	Action: cliRun,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadFile(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	token, err := loadToken(cfg.Discord.TokenFile)
	if err != nil {
		return err
	}
	session, err := NewDiscord(token)
	if err != nil {
		return err
	}
	robo, err := New(cfg, session, nil, newMetrics(), slog.Default())
	if err != nil {
		return err
	}
	return robo.Run(ctx, cfg.HTTP.Listen)
}

func cliColors(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadFile(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	return printColors(os.Stdout, cfg)
}

func printColors(w io.Writer, cfg *Config) error {
	g, err := cfg.Colors.Group()
	if err != nil {
		return fmt.Errorf("couldn't build color group: %w", err)
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Color", "Role", "Weight"})
	for _, c := range cfg.Colors.Entries {
		e, _ := g.Lookup(c.Name)
		wt := 1
		if c.Weight != nil {
			wt = *c.Weight
		}
		t.Append([]string{e.Display(), e.Role, strconv.Itoa(wt)})
	}
	if s := g.Strip(); len(s) != 0 {
		t.SetFooter([]string{"Removed on selection", strings.Join(s, ", "), ""})
	}
	t.Render()
	return nil
}

func cliCheck(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadFile(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := loadToken(cfg.Discord.TokenFile); err != nil {
		return err
	}
	slog.InfoContext(ctx, "config ok", slog.Int("colors", len(cfg.Colors.Entries)))
	return nil
}

func loadFile(ctx context.Context, name string) (*Config, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}
	return cfg, nil
}

func loadToken(name string) (string, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("couldn't read discord token: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", errors.New("discord token file is empty")
	}
	return s, nil
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}

// metrics configuration
func newMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		MessagesCount: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "brobot",
					Subsystem: "discord",
					Name:      "messages",
					Help:      "Number of guild messages received from Discord.",
				},
			),
		),
		CommandCount: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "brobot",
					Subsystem: "discord",
					Name:      "commands",
					Help:      "Number of command invocations received in Discord.",
				},
				[]string{"command"},
			),
		),
		RuleCount: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "brobot",
					Subsystem: "discord",
					Name:      "rules",
					Help:      "Number of replies sent by text rules.",
				},
				[]string{"rule"},
			),
		),
		RoleChanges: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "brobot",
					Subsystem: "roles",
					Name:      "changes",
					Help:      "Number of attempted role additions and removals.",
				},
				[]string{"op", "outcome"},
			),
		),
		SelectLatency: metrics.NewPromObserverVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Buckets:   []float64{0.1, 0.2, 0.5, 1, 2, 5, 10},
					Namespace: "brobot",
					Subsystem: "roles",
					Name:      "select_latency",
					Help:      "How long it takes to change a member's color in seconds.",
				},
				[]string{"ok"},
			),
		),
	}
}
