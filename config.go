package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gitlab.com/zephyrtronium/pick"

	"github.com/zephyrtronium/brobot/command"
	"github.com/zephyrtronium/brobot/rolegroup"
)

// Load loads brobot from a TOML configuration.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	if u := md.Undecoded(); len(u) != 0 {
		return nil, nil, fmt.Errorf("unknown config keys: %v", u)
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, &md, nil
}

// Config is the marshaled structure of brobot's configuration.
type Config struct {
	// Discord is the configuration for connecting to Discord.
	Discord DiscordCfg `toml:"discord"`
	// HTTP is the configuration for the HTTP API.
	HTTP HTTPCfg `toml:"http"`
	// Commands is the configuration for command parsing.
	Commands CommandsCfg `toml:"commands"`
	// Colors is the configuration of the color role group.
	Colors ColorsCfg `toml:"colors"`
	// Rules is the configuration of text rules.
	Rules RulesCfg `toml:"rules"`
}

// DiscordCfg is the configuration for connecting to Discord.
type DiscordCfg struct {
	// TokenFile is the path to a file containing the bot token.
	TokenFile string `toml:"token"`
	// Guilds is the list of guild IDs in which the bot responds.
	// If empty, the bot responds in every guild it is in.
	Guilds []string `toml:"guilds"`
	// Timeout is the timeout in seconds for each Discord API call.
	Timeout float64 `toml:"timeout"`
	// Rate is the rate limit for sending messages.
	Rate Rate `toml:"rate"`
	// Workers is the number of idle message handlers to keep.
	// Defaults to GOMAXPROCS.
	Workers int `toml:"workers"`
}

// HTTPCfg is the configuration for the HTTP API.
type HTTPCfg struct {
	// Listen is the address on which to serve. If empty, there is no server.
	Listen string `toml:"listen"`
}

// CommandsCfg is the configuration for command parsing.
type CommandsCfg struct {
	// Prefix marks messages as commands. Defaults to "!".
	Prefix string `toml:"prefix"`
}

// ColorsCfg is the configuration of the color role group.
type ColorsCfg struct {
	// Name is the name of the group for logs.
	Name string `toml:"name"`
	// Settle is the time in seconds to wait between removing old colors and
	// adding the new one. Defaults to 0.2.
	Settle *float64 `toml:"settle"`
	// Allow is the roles allowed to pick colors. If empty, anyone may.
	Allow []string `toml:"allow"`
	// Operators is the roles allowed to fill colors.
	Operators []string `toml:"operators"`
	// Eligible is the role members must have to have colors filled.
	Eligible string `toml:"eligible"`
	// Auto is the role marking members whose colors were filled. It is
	// removed when members pick a color themselves.
	Auto string `toml:"auto"`
	// Entries is the selectable colors in order.
	Entries []ColorCfg `toml:"entries"`
}

// ColorCfg is a single selectable color.
type ColorCfg struct {
	// Name is the name users pick the color by.
	Name string `toml:"name"`
	// Role is the guild role name.
	Role string `toml:"role"`
	// Weight is the relative chance of filling the color. Defaults to 1.
	Weight *int `toml:"weight"`
}

// RulesCfg is the configuration of text rules.
type RulesCfg struct {
	// Avatar is the phrase which makes the bot reply with the sender's
	// avatar. If empty, there is no avatar rule.
	Avatar string `toml:"avatar"`
	// Contains is the list of substring rules.
	Contains []ContainsCfg `toml:"contains"`
	// Match is the list of expression rules with random replies.
	Match []MatchCfg `toml:"match"`
}

// ContainsCfg is a rule replying to messages containing all of a set of
// substrings.
type ContainsCfg struct {
	Name     string   `toml:"name"`
	Triggers []string `toml:"triggers"`
	Reply    string   `toml:"reply"`
}

// MatchCfg is a rule replying to messages matching a regular expression with
// one of a list of replies.
type MatchCfg struct {
	Name    string   `toml:"name"`
	Pattern string   `toml:"pattern"`
	Replies []string `toml:"replies"`
}

// Rate is a rate limit configuration.
type Rate struct {
	Every float64 `toml:"every"`
	Num   int     `toml:"num"`
}

// Group builds the color role group.
func (c *ColorsCfg) Group() (*rolegroup.Group, error) {
	e := make([]rolegroup.Entry, len(c.Entries))
	for i, v := range c.Entries {
		e[i] = rolegroup.Entry{Name: v.Name, Role: v.Role}
	}
	var strip []string
	if c.Auto != "" {
		strip = append(strip, c.Auto)
	}
	name := c.Name
	if name == "" {
		name = "colors"
	}
	return rolegroup.New(name, e, strip...)
}

// Teams builds the distribution of colors used to fill.
func (c *ColorsCfg) Teams() *pick.Dist[string] {
	m := make(map[string]int, len(c.Entries))
	for _, v := range c.Entries {
		w := 1
		if v.Weight != nil {
			w = *v.Weight
		}
		m[strings.ToLower(v.Name)] = w
	}
	return pick.New(pick.FromMap(m))
}

// SettleTime is the configured settle interval.
func (c *ColorsCfg) SettleTime() time.Duration {
	if c.Settle == nil {
		return rolegroup.DefaultSettle
	}
	return fseconds(*c.Settle)
}

// Access builds the command access configuration.
func (c *ColorsCfg) Access() command.Access {
	return command.Access{
		Allow:     c.Allow,
		Operators: c.Operators,
		Eligible:  c.Eligible,
		Marker:    c.Auto,
	}
}

// Rules builds the text rules.
func (c *RulesCfg) Rules() ([]command.Rule, error) {
	var r []command.Rule
	for i, v := range c.Contains {
		if len(v.Triggers) == 0 {
			return nil, fmt.Errorf("rule %d (%q) has no triggers", i, v.Name)
		}
		if v.Reply == "" {
			return nil, fmt.Errorf("rule %d (%q) has no reply", i, v.Name)
		}
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("contains-%d", i)
		}
		r = append(r, command.NewContainsAll(name, v.Reply, v.Triggers...))
	}
	for i, v := range c.Match {
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("match-%d", i)
		}
		if len(v.Replies) == 0 {
			return nil, fmt.Errorf("rule %q has no replies", name)
		}
		if v.Pattern == "" {
			return nil, fmt.Errorf("rule %q has no pattern", name)
		}
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return nil, fmt.Errorf("couldn't compile pattern for rule %q: %w", name, err)
		}
		r = append(r, command.NewMatchChoice(name, re, v.Replies...))
	}
	if c.Avatar != "" {
		r = append(r, command.NewAvatarPhrase(c.Avatar))
	}
	return r, nil
}

// Check validates the configuration without connecting to anything.
func (cfg *Config) Check() error {
	var errs error
	if cfg.Discord.TokenFile == "" {
		errs = errors.Join(errs, errors.New("no discord token file"))
	}
	if cfg.Discord.Timeout < 0 {
		errs = errors.Join(errs, errors.New("negative discord timeout"))
	}
	if cfg.Discord.Workers < 0 {
		errs = errors.Join(errs, errors.New("negative worker count"))
	}
	if cfg.Colors.Settle != nil && *cfg.Colors.Settle < 0 {
		errs = errors.Join(errs, errors.New("negative settle interval"))
	}
	if _, err := cfg.Colors.Group(); err != nil {
		errs = errors.Join(errs, err)
	}
	total := 0
	for _, v := range cfg.Colors.Entries {
		w := 1
		if v.Weight != nil {
			w = *v.Weight
		}
		if w < 0 {
			errs = errors.Join(errs, fmt.Errorf("negative weight for color %q", v.Name))
		}
		total += w
	}
	if len(cfg.Colors.Entries) != 0 && total <= 0 {
		errs = errors.Join(errs, errors.New("color weights sum to zero"))
	}
	if _, err := cfg.Rules.Rules(); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.Discord.TokenFile,
		&cfg.HTTP.Listen,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
	for i, s := range cfg.Discord.Guilds {
		cfg.Discord.Guilds[i] = os.Expand(s, expand)
	}
}
