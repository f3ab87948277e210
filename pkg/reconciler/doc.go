/*
Package reconciler implements the Reconciler (component D): the step
that pulls LiveStore state into PlanStore once per tick, ahead of
Scheduler.

Runs in a fixed order every tick:

	1. Sync robot attributes (location, ongoing/previous action,
	   charge, error count) from LiveStore into PlanStore.
	2. Sync cart locations from LiveStore into PlanStore.
	3. Diff booking rows against a cached snapshot and report exactly
	   those that changed value since the last tick (not since the
	   last timestamp — two updates inside the same wall-clock second
	   must not be collapsed into one).

BatteryMonitor (package battery) is polled separately by the caller,
per spec.md §5's fixed tick ordering.
*/
package reconciler
