package battery

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/chargepal/fleetctl/pkg/livestore"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestCommandForState(t *testing.T) {
	cases := []struct {
		state  string
		want   types.ChargerCommand
		wantOK bool
	}{
		{"BAT_1_charging", types.ChargerStartCharging, true},
		{"BAT_1_recharging_start", types.ChargerStartRecharging, true},
		{"BAT_1_recharging_stop", types.ChargerStopRecharging, true},
		{"BAT_1_idle", "", false},
	}
	for _, c := range cases {
		cmd, ok := commandForState(c.state)
		require.Equal(t, c.wantOK, ok, c.state)
		if c.wantOK {
			require.Equal(t, c.want, cmd, c.state)
		}
	}
}

func TestPollReturnsOnlyChangedStates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldb.db")
	ldb, err := livestore.Open(livestore.Config{SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ldb.Close() })

	// Seed the embedded LiveStore file through a second handle; the
	// "sqlite" driver is registered by pkg/livestore.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec("CREATE TABLE TX_ChargeOrdersFeedback (cart_name TEXT PRIMARY KEY, State_bat_mod TEXT, last_change TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO TX_ChargeOrdersFeedback VALUES (?, ?, ?)", "BAT_1", "BAT_1_charging", "2020-01-01 00:00:00")
	require.NoError(t, err)

	m := New()
	deltas, err := m.Poll(ldb)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	require.Equal(t, types.ChargerStartCharging, deltas[0].Command)
	require.Equal(t, "BAT_1_charging", m.states["BAT_1"])

	// The row sits exactly at the new watermark and is returned again,
	// but its state text has not changed, so no delta is reported.
	deltas, err = m.Poll(ldb)
	require.NoError(t, err)
	require.Empty(t, deltas)
}
