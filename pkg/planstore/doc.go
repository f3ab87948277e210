// Package planstore is the typed, transactional store of the six
// PlanStore entities (robots, carts, stations, distances, jobs,
// bookings). It is bbolt-backed, one bucket per entity, values
// JSON-encoded and keyed by name or id — the same shape the fleet
// controller's storage layer uses everywhere else.
//
// All Scheduler and JobStateMachine mutation for one tick is expected
// to run inside a single Tx (see Store.Begin and Tx.Commit); PlanStore itself does not
// decide when a tick starts or ends.
package planstore
