// Package metrics wires a Prometheus registry into the router,
// persistence and broadcast packages and cmd/main, grounded on prometheus/client_golang's
// use in the DimaJoyti example. No HTTP exposition endpoint is stood up
// here -- client-facing transport, HTTP included, is out of scope per
// spec.md §1 -- the registry is read directly by router.Router.Metrics()
// for the get_metrics() query surface spec.md §6 names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every counter/gauge the engine core touches.
type Registry struct {
	reg *prometheus.Registry

	OrdersAdmitted    *prometheus.CounterVec
	OrdersRejected    *prometheus.CounterVec
	TradesEmitted     *prometheus.CounterVec
	CancelsProcessed  *prometheus.CounterVec
	PersistenceLag    *prometheus.GaugeVec
	PersistenceErrors *prometheus.CounterVec
	BroadcastDropped  *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	HealthDegraded    *prometheus.GaugeVec
}

// New constructs and registers a fresh Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		OrdersAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_engine_orders_admitted_total",
			Help: "Orders successfully admitted (not rejected), per symbol.",
		}, []string{"symbol"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_engine_orders_rejected_total",
			Help: "Orders rejected at validation or admission, per symbol and reason.",
		}, []string{"symbol", "reason"}),
		TradesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_engine_trades_total",
			Help: "Trades emitted by the matching engine, per symbol.",
		}, []string{"symbol"}),
		CancelsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_engine_cancels_total",
			Help: "Cancel requests processed, per symbol and outcome.",
		}, []string{"symbol", "outcome"}),
		PersistenceLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matching_engine_persistence_lag",
			Help: "1 while the persistence queue is backed up for a symbol, else 0.",
		}, []string{"symbol"}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_engine_persistence_errors_total",
			Help: "Batched persistence write failures, per symbol.",
		}, []string{"symbol"}),
		BroadcastDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_engine_broadcast_dropped_total",
			Help: "Broadcast sends dropped due to a slow/closed subscriber, per symbol.",
		}, []string{"symbol"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matching_engine_queue_depth",
			Help: "Current depth of a bounded queue, per queue name.",
		}, []string{"queue"}),
		HealthDegraded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matching_engine_health_degraded",
			Help: "1 if a symbol's engine has halted ingress after an invariant violation.",
		}, []string{"symbol"}),
	}

	reg.MustRegister(
		r.OrdersAdmitted, r.OrdersRejected, r.TradesEmitted, r.CancelsProcessed,
		r.PersistenceLag, r.PersistenceErrors, r.BroadcastDropped, r.QueueDepth, r.HealthDegraded,
	)
	return r
}

// Gather exposes the underlying registry's Gather, for a caller that
// does want to serve /metrics over an (external) HTTP transport.
func (r *Registry) Gather() ([]*prometheus.MetricFamily, error) {
	return r.reg.Gather()
}
