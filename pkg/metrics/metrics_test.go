package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMarketplaceMetricsExportsCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMarketplaceMetrics(reg)
	m.TransactionEvent("created")
	m.TransactionEvent("created")
	m.TransactionEvent("completed")
	m.MessageAppended()
	m.ReviewSubmitted()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "marketplace_transactions_total", "event", "created"); err != nil {
		t.Fatalf("fetch created: %v", err)
	} else if got != 2 {
		t.Fatalf("expected created=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "marketplace_transactions_total", "event", "completed"); err != nil {
		t.Fatalf("fetch completed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected completed=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "marketplace_realtime_connections")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("gauge not exported")
	}
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Fatalf("expected 1 open connection, got %f", got)
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTPMetrics(reg)
	h.Observe("POST", "/api/v1/transactions", 201, 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "route", "/api/v1/transactions"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestOutboxMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewOutboxMetrics(reg)
	o.Observe("transaction_created", OutboxResultPublished)
	o.Observe("", OutboxResultRetry)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_total", "event_type", "unknown"); err != nil {
		t.Fatalf("fetch unknown: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown=1, got %f", got)
	}
}

func TestNilRecordersAreNoops(t *testing.T) {
	var m *MarketplaceMetrics
	m.TransactionEvent("created")
	m.ConnectionOpened()
	NewMarketplaceMetrics(nil).MessageAppended()

	var h *HTTPMetrics
	h.Observe("GET", "/", 200, time.Millisecond)

	var o *OutboxMetrics
	o.Observe("x", OutboxResultPublished)
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

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
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
