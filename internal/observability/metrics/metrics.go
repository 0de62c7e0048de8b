package metrics

import "github.com/prometheus/client_golang/prometheus"

// MessagingMetrics exposes counters/histograms for the SMS transport.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Total inbound messages by channel and processing status",
		}, []string{"channel", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound sends by status",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "handle_latency_seconds",
			Help:      "Latency of inbound message handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *MessagingMetrics) ObserveLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}

// DialogueMetrics counts dialogue turns and their outcomes.
type DialogueMetrics struct {
	turnsTotal        *prometheus.CounterVec
	rejectionsTotal   *prometheus.CounterVec
	commitsTotal      *prometheus.CounterVec
	reconciliationGap *prometheus.CounterVec
	turnLatency       prometheus.Histogram
}

func NewDialogueMetrics(reg prometheus.Registerer) *DialogueMetrics {
	m := &DialogueMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Dialogue turns by intent and sender role",
		}, []string{"intent", "role"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "errors_total",
			Help:      "Turns that ended with an error kind",
		}, []string{"kind"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "commits_total",
			Help:      "Committed operations",
		}, []string{"operation"}),
		reconciliationGap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "reconciliation_gaps_total",
			Help:      "Partial commits that need manual follow-up",
		}, []string{"operation"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "Time to process one dialogue turn",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.rejectionsTotal, m.commitsTotal, m.reconciliationGap, m.turnLatency)
	return m
}

func (m *DialogueMetrics) ObserveTurn(intent, role string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(intent, role).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *DialogueMetrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(kind).Inc()
}

func (m *DialogueMetrics) ObserveCommit(operation string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(operation).Inc()
}

func (m *DialogueMetrics) ObserveReconciliationGap(operation string) {
	if m == nil {
		return
	}
	m.reconciliationGap.WithLabelValues(operation).Inc()
}
