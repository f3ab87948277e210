// Package requestqueue implements RequestQueue (component H): the
// sole path by which concurrently running RPC handlers mutate planner
// state. Handlers enqueue a callback instead of touching PlanStore
// directly; the tick loop drains the queue at a fixed point (after
// scheduling, before commit) so every callback observes a
// self-consistent, race-free snapshot (spec.md §4.H, §5).
package requestqueue
