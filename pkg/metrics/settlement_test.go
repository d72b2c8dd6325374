package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSettlementMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSettlementMetrics(reg)

	metrics.IncSettled("delivery")
	metrics.IncSettled("delivery")
	metrics.IncDeferred()
	metrics.IncDispute("automatic")
	metrics.AddPayout("producer", 120)
	metrics.AddPayout("producer", 30)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "settlements_total", "trigger", "delivery"); err != nil {
		t.Fatalf("fetch settled: %v", err)
	} else if got != 2 {
		t.Fatalf("expected settled=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "disputes_total", "origin", "automatic"); err != nil {
		t.Fatalf("fetch disputes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected disputes=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payout_amount_total", "role", "producer"); err != nil {
		t.Fatalf("fetch payout: %v", err)
	} else if got != 150 {
		t.Fatalf("expected payout=150, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	metrics := NewSettlementMetrics(nil)
	metrics.IncSettled("delivery")
	metrics.IncDeferred()
	metrics.IncDispute("manual")
	metrics.AddPayout("carrier", 10)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
