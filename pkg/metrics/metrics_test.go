package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngineMetricsRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)

	m.ObserveRun("preview", "ok", 10*time.Millisecond)
	m.ObserveRun("commit", "contention", 20*time.Millisecond)
	m.IncContention()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"promotion_engine_evaluations_total",
		"promotion_engine_duration_seconds",
		"promotion_engine_contention_retries_total",
	} {
		if !names[want] {
			t.Fatalf("metric %s not exported", want)
		}
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewEngineMetrics(nil)
	m.ObserveRun("preview", "ok", time.Millisecond)
	m.IncContention()

	om := NewOrderMetrics(nil)
	om.ObserveTransition("completed", "ok")
	om.IncConflict()
}
