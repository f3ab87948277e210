package battery

import (
	"strings"
	"sync"
	"time"

	"github.com/chargepal/fleetctl/pkg/livestore"
	"github.com/chargepal/fleetctl/pkg/types"
)

// Delta is one cart whose battery-state text changed since the last
// poll.
type Delta struct {
	Cart       string
	State      string
	Command    types.ChargerCommand
	HasCommand bool
}

// Monitor tracks the last known battery-state text per cart and a
// watermark of the last successful poll (spec.md §4.I).
type Monitor struct {
	mu       sync.Mutex
	lastTime time.Time
	states   map[string]string
}

// New returns a Monitor that polls from the zero time on its first
// call, so the first tick observes every currently known state.
func New() *Monitor {
	return &Monitor{states: map[string]string{}}
}

// Poll queries ldb for battery messages since the last watermark,
// advances the watermark, and returns only the carts whose state text
// actually changed.
func (m *Monitor) Poll(ldb *livestore.Store) ([]Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	since := m.lastTime
	rows, err := ldb.FetchBatteryMessages(since)
	if err != nil {
		return nil, err
	}

	var deltas []Delta
	latest := m.lastTime
	for _, row := range rows {
		if row.LastChange.After(latest) {
			latest = row.LastChange
		}
		if m.states[row.CartName] == row.State {
			continue
		}
		m.states[row.CartName] = row.State
		d := Delta{Cart: row.CartName, State: row.State}
		if cmd, ok := commandForState(row.State); ok {
			d.Command, d.HasCommand = cmd, true
		}
		deltas = append(deltas, d)
	}
	m.lastTime = latest
	return deltas, nil
}

// commandForState maps the battery-state substrings named in
// spec.md §4.I to a structural ChargerCommand. States that carry no
// structural meaning for JobStateMachine (e.g. idle/fault text) yield
// ok == false.
func commandForState(state string) (types.ChargerCommand, bool) {
	lower := strings.ToLower(state)
	switch {
	case strings.Contains(lower, "_recharging"):
		if strings.Contains(lower, "stop") {
			return types.ChargerStopRecharging, true
		}
		return types.ChargerStartRecharging, true
	case strings.Contains(lower, "_charging"):
		return types.ChargerStartCharging, true
	}
	return "", false
}
