/*
Package metrics defines and registers the Prometheus metrics exposed by
fleetctl: fleet-state gauges (robots, carts, jobs), tick and
reconciliation timings, scheduling outcomes, and RPC instrumentation.
Metrics are exposed over HTTP for scraping; Collector samples PlanStore
and RequestQueue state on a timer independent of the tick loop.

# Usage

	timer := metrics.NewTimer()
	err := scheduler.ScheduleTick(tx)
	timer.ObserveDuration(metrics.SchedulingDuration)

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
