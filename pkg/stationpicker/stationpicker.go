package stationpicker

import (
	"strings"
	"sync"

	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/types"
)

// Picker implements SearchFreeStation/ResetBlockers over a PlanStore
// snapshot, grounded on the original free_station.py algorithm.
type Picker struct {
	mu       sync.Mutex
	blockers map[types.StationPrefix]map[string]map[string]struct{}
}

// New returns a Picker with empty blocker sets for every known prefix.
func New() *Picker {
	return &Picker{
		blockers: map[types.StationPrefix]map[string]map[string]struct{}{
			types.PrefixBCS: {},
			types.PrefixBWS: {},
		},
	}
}

func (p *Picker) blockerSet(prefix types.StationPrefix, robot string) map[string]struct{} {
	byRobot, ok := p.blockers[prefix]
	if !ok {
		byRobot = map[string]map[string]struct{}{}
		p.blockers[prefix] = byRobot
	}
	set, ok := byRobot[robot]
	if !ok {
		set = map[string]struct{}{}
		byRobot[robot] = set
	}
	return set
}

// stationNameWithPrefix extracts the first "<prefix><digits>" token
// present in s, mirroring get_station_name's regex extraction.
func stationNameWithPrefix(s string, prefix types.StationPrefix) (string, bool) {
	idx := strings.Index(s, string(prefix))
	if idx < 0 {
		return "", false
	}
	rest := s[idx+len(prefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", false
	}
	return s[idx : idx+len(prefix)+end], true
}

// SearchFreeStation returns a free station with the given prefix for
// robot, or "" if none is free. tx must be a PlanStore transaction (a
// read snapshot is sufficient; SearchFreeStation does not mutate
// PlanStore — only the picker's own in-memory blocker sets).
func (p *Picker) SearchFreeStation(tx *planstore.Tx, robot string, prefix types.StationPrefix) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	robotRow, err := tx.GetRobot(robot)
	if err != nil {
		return "", err
	}

	blockerSet := p.blockerSet(prefix, robot)
	if name, ok := stationNameWithPrefix(robotRow.Location, prefix); ok {
		blockerSet[name] = struct{}{}
	}

	blocked := map[string]struct{}{}

	robots, err := tx.ListRobots()
	if err != nil {
		return "", err
	}
	for _, r := range robots {
		for _, field := range []string{r.Location, r.OngoingAction} {
			if name, ok := stationNameWithPrefix(field, prefix); ok {
				blocked[name] = struct{}{}
			}
		}
	}

	carts, err := tx.ListCarts()
	if err != nil {
		return "", err
	}
	for _, c := range carts {
		if name, ok := stationNameWithPrefix(c.Location, prefix); ok {
			blocked[name] = struct{}{}
		}
	}

	stations, err := tx.ListStationsByPrefix(prefix)
	if err != nil {
		return "", err
	}

	free := ""
	best := -1.0
	for _, st := range stations {
		if _, isBlocked := blocked[st.Name]; isBlocked {
			continue
		}
		if _, isBlocked := blockerSet[st.Name]; isBlocked {
			continue
		}
		distance := tx.Distance(st.Name, robotRow.Location)
		if best < 0 || distance < best {
			free = st.Name
			best = distance
		}
	}

	if free != "" {
		blockerSet[free] = struct{}{}
	}
	return free, nil
}

// ResetBlockers clears robot's blocker set for prefix.
func (p *Picker) ResetBlockers(robot string, prefix types.StationPrefix) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.blockerSet(prefix, robot)
	for k := range set {
		delete(set, k)
	}
}
