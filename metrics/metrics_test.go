package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromCounterVec(t *testing.T) {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "changes"}, []string{"op", "outcome"})
	o := NewPromCounterVec(v)
	o.Observe(1, "add", "ok")
	o.Observe(1, "add", "ok")
	o.Observe(1, "remove", "permission denied")
	if got := testutil.ToFloat64(v.WithLabelValues("add", "ok")); got != 2 {
		t.Errorf("wrong add count: want 2, got %v", got)
	}
	if got := testutil.ToFloat64(v.WithLabelValues("remove", "permission denied")); got != 1 {
		t.Errorf("wrong remove count: want 1, got %v", got)
	}
}

func TestPromCounter(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "messages"})
	o := NewPromCounter(c)
	o.Observe(1)
	o.Observe(3, "ignored")
	if got := testutil.ToFloat64(c); got != 4 {
		t.Errorf("wrong count: want 4, got %v", got)
	}
}
