package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	prometheus.Collector
}

type Metrics struct {
	// MessagesCount counts guild messages received.
	MessagesCount Observer
	// CommandCount counts command invocations, labeled by command name.
	CommandCount Observer
	// RuleCount counts text rule replies, labeled by rule name.
	RuleCount Observer
	// RoleChanges counts role additions and removals, labeled by operation
	// and outcome.
	RoleChanges Observer
	// SelectLatency observes how long color selections take in seconds,
	// labeled by whether they succeeded.
	SelectLatency Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesCount,
		m.CommandCount,
		m.RuleCount,
		m.RoleChanges,
		m.SelectLatency,
	}
}
