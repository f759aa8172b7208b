package command

import (
	"log/slog"
	"math/rand/v2"

	"gitlab.com/zephyrtronium/pick"

	"github.com/zephyrtronium/brobot/metrics"
	"github.com/zephyrtronium/brobot/rolegroup"
)

// Robot is the bot state as is visible to commands.
type Robot struct {
	Log *slog.Logger
	// Group is the group of selectable color roles.
	Group *rolegroup.Group
	// Roles changes members' roles.
	Roles *rolegroup.Manager
	// Access is the role requirements for commands.
	Access Access
	// Teams is the distribution of entry names used to fill colors.
	// If nil, entries are chosen uniformly.
	Teams *pick.Dist[string]
	// Metrics is the bot's metrics. Any of its observers may be nil.
	Metrics metrics.Metrics
	// IntN returns a uniform random integer in [0, n). If nil, commands use
	// math/rand/v2.
	IntN func(n int) int
}

// Access describes which guild roles may use which commands.
type Access struct {
	// Allow is the roles that may select colors. If empty, everyone may.
	Allow []string
	// Operators is the roles that may fill colors. If empty, nobody may.
	Operators []string
	// Eligible is the role a member must hold to be given a color by fill.
	// If empty, every member is eligible.
	Eligible string
	// Marker is a role given alongside automatically filled colors.
	Marker string
}

// choose picks an entry for a member without one.
func (robo *Robot) choose() rolegroup.Entry {
	if robo.Teams != nil {
		if e, ok := robo.Group.Lookup(robo.Teams.Pick(rand.Uint32())); ok {
			return e
		}
	}
	e := robo.Group.Entries()
	return e[robo.intN(len(e))]
}

func (robo *Robot) intN(n int) int {
	if robo.IntN != nil {
		return robo.IntN(n)
	}
	return rand.IntN(n)
}

func observe(o metrics.Observer, val float64, labels ...string) {
	if o == nil {
		return
	}
	o.Observe(val, labels...)
}
