package planmanager

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// Metrics tracks plan lifecycle metrics for Prometheus.
type Metrics struct {
	mu sync.Mutex

	plansCreated    uint64
	plansExtended   uint64
	plansReduced    uint64
	plansTerminated uint64

	paymentsRecorded uint64

	noticesSent      uint64
	expiriesDetected uint64
	notifyFailures   uint64

	ticks uint64

	tickDuration histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	count   uint64
	sum     float64
}

var durationBucketsTick = []float64{
	0.01,
	0.05,
	0.1,
	0.25,
	0.5,
	1,
	2.5,
	5,
	10,
}

// NewMetrics constructs a Metrics registry with default histogram buckets.
func NewMetrics() *Metrics {
	return &Metrics{
		tickDuration: newHistogram(durationBucketsTick),
	}
}

// ObservePlanCreated records a plan creation.
func (m *Metrics) ObservePlanCreated() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.plansCreated++
	m.mu.Unlock()
}

// ObservePlanExtended records a plan extension.
func (m *Metrics) ObservePlanExtended() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.plansExtended++
	m.mu.Unlock()
}

// ObservePlanReduced records a plan reduction.
func (m *Metrics) ObservePlanReduced() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.plansReduced++
	m.mu.Unlock()
}

// ObservePlanTerminated records a plan termination.
func (m *Metrics) ObservePlanTerminated() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.plansTerminated++
	m.mu.Unlock()
}

// ObservePaymentRecorded records a ledger append.
func (m *Metrics) ObservePaymentRecorded() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.paymentsRecorded++
	m.mu.Unlock()
}

// ObserveNoticeSent records an expiring-soon notice.
func (m *Metrics) ObserveNoticeSent() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.noticesSent++
	m.mu.Unlock()
}

// ObserveExpiryDetected records a newly expired plan.
func (m *Metrics) ObserveExpiryDetected() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.expiriesDetected++
	m.mu.Unlock()
}

// ObserveNotifyFailure records a failed notification dispatch.
func (m *Metrics) ObserveNotifyFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.notifyFailures++
	m.mu.Unlock()
}

// ObserveTick records a reconciliation tick and its duration.
func (m *Metrics) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.mu.Lock()
	m.ticks++
	m.tickDuration.observe(seconds)
	m.mu.Unlock()
}

// WritePrometheus writes metrics in Prometheus exposition format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	if m == nil {
		return
	}

	m.mu.Lock()
	plansCreated := m.plansCreated
	plansExtended := m.plansExtended
	plansReduced := m.plansReduced
	plansTerminated := m.plansTerminated
	paymentsRecorded := m.paymentsRecorded
	noticesSent := m.noticesSent
	expiriesDetected := m.expiriesDetected
	notifyFailures := m.notifyFailures
	ticks := m.ticks
	tickDuration := copyHistogram(m.tickDuration)
	m.mu.Unlock()

	fmt.Fprintf(w, "# HELP plan_operations_total Plan operations by kind.\n")
	fmt.Fprintf(w, "# TYPE plan_operations_total counter\n")
	fmt.Fprintf(w, "plan_operations_total{op=%q} %d\n", "create", plansCreated)
	fmt.Fprintf(w, "plan_operations_total{op=%q} %d\n", "extend", plansExtended)
	fmt.Fprintf(w, "plan_operations_total{op=%q} %d\n", "reduce", plansReduced)
	fmt.Fprintf(w, "plan_operations_total{op=%q} %d\n", "terminate", plansTerminated)

	fmt.Fprintf(w, "# HELP plan_payments_recorded_total Ledger entries appended.\n")
	fmt.Fprintf(w, "# TYPE plan_payments_recorded_total counter\n")
	fmt.Fprintf(w, "plan_payments_recorded_total %d\n", paymentsRecorded)

	fmt.Fprintf(w, "# HELP plan_notices_sent_total Expiring-soon notices sent.\n")
	fmt.Fprintf(w, "# TYPE plan_notices_sent_total counter\n")
	fmt.Fprintf(w, "plan_notices_sent_total %d\n", noticesSent)

	fmt.Fprintf(w, "# HELP plan_expiries_detected_total Plans flagged expired by reconciliation.\n")
	fmt.Fprintf(w, "# TYPE plan_expiries_detected_total counter\n")
	fmt.Fprintf(w, "plan_expiries_detected_total %d\n", expiriesDetected)

	fmt.Fprintf(w, "# HELP plan_notify_failures_total Failed notification dispatches.\n")
	fmt.Fprintf(w, "# TYPE plan_notify_failures_total counter\n")
	fmt.Fprintf(w, "plan_notify_failures_total %d\n", notifyFailures)

	fmt.Fprintf(w, "# HELP plan_reconcile_ticks_total Reconciliation ticks executed.\n")
	fmt.Fprintf(w, "# TYPE plan_reconcile_ticks_total counter\n")
	fmt.Fprintf(w, "plan_reconcile_ticks_total %d\n", ticks)

	writeHistogram(w, "plan_reconcile_tick_duration_seconds", "Reconciliation tick duration in seconds.", "", tickDuration)
}

func newHistogram(buckets []float64) histogram {
	return histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func copyHistogram(h histogram) histogram {
	return histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		count:   h.count,
		sum:     h.sum,
	}
}

func writeHistogram(w io.Writer, name, help, labels string, h histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", name)
	labelPrefix := labels
	if labelPrefix != "" {
		labelPrefix += ","
	}
	for i, bound := range h.buckets {
		fmt.Fprintf(
			w,
			"%s_bucket{%sle=%q} %d\n",
			name,
			labelPrefix,
			formatFloat(bound),
			h.counts[i],
		)
	}
	fmt.Fprintf(w, "%s_bucket{%sle=%q} %d\n", name, labelPrefix, "+Inf", h.count)
	fmt.Fprintf(w, "%s_sum{%s} %s\n", name, labels, formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count{%s} %d\n", name, labels, h.count)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
