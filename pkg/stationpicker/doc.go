// Package stationpicker implements the free-station search (component
// E): per-robot, per-prefix persistent blocker sets that prevent a
// robot from oscillating between two equally-free stations across
// successive picks within one higher-level decision. Blockers are
// cleared only by an explicit ResetBlockers call.
package stationpicker
