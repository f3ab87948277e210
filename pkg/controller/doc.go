// Package controller owns the planner tick loop: it wires PlanStore,
// LiveStore, Reconciler, Scheduler, JobStateMachine, BatteryMonitor,
// StationPicker, RequestQueue and the event broker together and runs
// them in the fixed per-tick order (Reconcile, BookingDiff dispatch,
// BatteryMonitor dispatch, Schedule, drain RequestQueue, commit). The
// RPC façade talks to the fleet only through the accessors this
// package exposes; the plug-in handshake is the one RPC that opens its
// own PlanStore transaction instead of enqueuing.
package controller
