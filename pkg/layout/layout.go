// Package layout implements the Manhattan-distance lookup between named
// stations (component A). Coordinates are a built-in grid table, not a
// metric route planner: route planning at metric level is explicitly out
// of scope for the fleet controller.
package layout

import "math"

// CellSize is the edge length, in meters, of one grid cell.
const CellSize = 2.5

// MaxDistance is returned for any pair involving an unknown station name,
// so such pairs always lose Scheduler and StationPicker tie-breaks.
const MaxDistance = 16 * CellSize

type point struct {
	x, y float64
}

// positions is the built-in coordinate table. Station names follow the
// ADS_/BCS_/BWS_/RBS_ prefix convention described in pkg/types.
var positions = map[string]point{
	"ADS_1": {3, 2},
	"ADS_2": {5, 2},
	"ADS_3": {3, 5},
	"ADS_4": {5, 5},
	"BCS_1": {1, 0},
	"BCS_2": {3, 0},
	"BWS_1": {1, 0},
	"BWS_2": {3, 0},
	"RBS_1": {7, 0},
}

// Layout resolves distances between known station names.
type Layout struct {
	positions map[string]point
}

// New returns a Layout seeded with the built-in coordinate table.
func New() *Layout {
	l := &Layout{positions: make(map[string]point, len(positions))}
	for name, p := range positions {
		l.positions[name] = p
	}
	return l
}

// Distance returns the Manhattan distance between a and b, scaled by
// CellSize. If either name is unknown, MaxDistance is returned.
func (l *Layout) Distance(a, b string) float64 {
	pa, ok := l.positions[a]
	if !ok {
		return MaxDistance
	}
	pb, ok := l.positions[b]
	if !ok {
		return MaxDistance
	}
	return (math.Abs(pa.x-pb.x) + math.Abs(pa.y-pb.y)) * CellSize
}

// Stations returns every known station name, in no particular order.
func (l *Layout) Stations() []string {
	names := make([]string, 0, len(l.positions))
	for name := range l.positions {
		names = append(names, name)
	}
	return names
}

// Known reports whether name has a coordinate entry.
func (l *Layout) Known(name string) bool {
	_, ok := l.positions[name]
	return ok
}
