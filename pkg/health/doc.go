/*
Package health provides reusable health check primitives: an HTTP
probe and a TCP probe, both implementing a common Checker interface,
plus a Status tracker that turns a stream of Results into a
debounced healthy/unhealthy signal.

fleetctl's running process does not use this package: its readiness
probe is pkg/api.ReadyHandler, which queries PlanStore and LiveStore
directly. TCPChecker can probe the LiveStore MySQL DSN's host:port
from outside the process.

# Checkers

	Checker (interface)
	├── HTTPChecker — GET/HEAD a URL, check status range
	└── TCPChecker  — dial a host:port, check for a clean connect

# Usage

	checker := health.NewTCPChecker("mysql-host:3306").WithTimeout(2 * time.Second)
	result := checker.Check(ctx)
	if !result.Healthy {
		log.Warn().Str("message", result.Message).Msg("livestore dependency unreachable")
	}

# Status tracking

Status turns a noisy Result stream into a stable signal: one healthy
Result marks it healthy, and Config.Retries consecutive failures mark
it unhealthy. Update does not consult Config.StartPeriod; InStartPeriod
is a separate check of that grace window:

	status := health.NewStatus()
	cfg := health.Config{Interval: 10 * time.Second, Timeout: 2 * time.Second, Retries: 3}
	status.Update(checker.Check(ctx), cfg)
	if status.Healthy { ... }
*/
package health
