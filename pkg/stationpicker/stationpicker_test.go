package stationpicker

import (
	"testing"

	"github.com/chargepal/fleetctl/pkg/layout"
	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *planstore.Store {
	t.Helper()
	s, err := planstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SeedDistances(layout.New()))
	require.NoError(t, s.SeedStations([]types.Station{
		{Name: "BCS_1", Prefix: types.PrefixBCS, Available: true},
		{Name: "BCS_2", Prefix: types.PrefixBCS, Available: true},
	}))
	return s
}

func TestSearchFreeStationPicksNearest(t *testing.T) {
	s := seededStore(t)
	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", Location: "ADS_1", Available: true}))
	require.NoError(t, tx.Commit())

	picker := New()
	tx2, err := s.Begin()
	require.NoError(t, err)
	defer tx2.Rollback()

	station, err := picker.SearchFreeStation(tx2, "ChargePal1", types.PrefixBCS)
	require.NoError(t, err)
	require.NotEmpty(t, station)
}

func TestSearchFreeStationExhaustion(t *testing.T) {
	s := seededStore(t)
	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", Location: "ADS_1", Available: true}))
	require.NoError(t, tx.PutCart(&types.Cart{Name: "BAT_1", Location: "BCS_1"}))
	require.NoError(t, tx.PutCart(&types.Cart{Name: "BAT_2", Location: "BCS_2"}))
	require.NoError(t, tx.Commit())

	picker := New()
	tx2, err := s.Begin()
	require.NoError(t, err)
	defer tx2.Rollback()

	station, err := picker.SearchFreeStation(tx2, "ChargePal1", types.PrefixBCS)
	require.NoError(t, err)
	require.Empty(t, station, "both BCS stations are occupied by carts")
}

func TestResetBlockersAllowsReselection(t *testing.T) {
	s := seededStore(t)
	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", Location: "ADS_1", Available: true}))
	require.NoError(t, tx.Commit())

	picker := New()

	tx2, err := s.Begin()
	require.NoError(t, err)
	first, err := picker.SearchFreeStation(tx2, "ChargePal1", types.PrefixBCS)
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback())
	require.NotEmpty(t, first)

	picker.ResetBlockers("ChargePal1", types.PrefixBCS)

	tx3, err := s.Begin()
	require.NoError(t, err)
	defer tx3.Rollback()
	second, err := picker.SearchFreeStation(tx3, "ChargePal1", types.PrefixBCS)
	require.NoError(t, err)
	require.Equal(t, first, second, "after reset the same nearest station should be selectable again")
}
