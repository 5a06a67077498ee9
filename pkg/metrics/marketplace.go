package metrics

import "github.com/prometheus/client_golang/prometheus"

// MarketplaceMetrics tracks the trade lifecycle.
type MarketplaceMetrics struct {
	transactions *prometheus.CounterVec
	messages     prometheus.Counter
	reviews      prometheus.Counter
	connections  prometheus.Gauge
}

// NewMarketplaceMetrics registers the domain metrics on reg. A nil registerer
// yields a recorder whose methods do nothing.
func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_transactions_total",
		Help: "Transaction lifecycle events by kind.",
	}, []string{"event"})
	messages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_messages_total",
		Help: "Chat messages appended, including system messages.",
	})
	reviews := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_reviews_total",
		Help: "Reviews submitted.",
	})
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_realtime_connections",
		Help: "Open realtime websocket connections on this instance.",
	})
	reg.MustRegister(transactions, messages, reviews, connections)
	return &MarketplaceMetrics{
		transactions: transactions,
		messages:     messages,
		reviews:      reviews,
		connections:  connections,
	}
}

// TransactionEvent counts a lifecycle step such as created or completed.
func (m *MarketplaceMetrics) TransactionEvent(event string) {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *MarketplaceMetrics) MessageAppended() {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.Inc()
}

func (m *MarketplaceMetrics) ReviewSubmitted() {
	if m == nil || m.reviews == nil {
		return
	}
	m.reviews.Inc()
}

// ConnectionOpened and ConnectionClosed track the realtime gauge.
func (m *MarketplaceMetrics) ConnectionOpened() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Inc()
}

func (m *MarketplaceMetrics) ConnectionClosed() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Dec()
}
