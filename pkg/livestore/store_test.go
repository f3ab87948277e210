package livestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ldb.db")
	s, err := Open(Config{SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func execSchema(t *testing.T, s *Store, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := s.db.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestOpenFallsBackToSQLiteWhenNoDSN(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, "sqlite", s.Backend())
}

func TestOpenFallsBackToSQLiteOnUnreachableMySQL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldb.db")
	s, err := Open(Config{
		MySQLDSN:    "nouser:nopass@tcp(127.0.0.1:1)/doesnotexist",
		SQLitePath:  path,
		PingTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, "sqlite", s.Backend())
}

func TestDumpFileReturnsSQLiteBytes(t *testing.T) {
	s := newTestStore(t)
	execSchema(t, s, "CREATE TABLE env_info (name TEXT PRIMARY KEY, value TEXT, count INTEGER)")

	data, err := s.DumpFile()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	fileData, err := os.ReadFile(s.filePath)
	require.NoError(t, err)
	require.Equal(t, fileData, data)
}

func TestFetchEnvInfosAndCount(t *testing.T) {
	s := newTestStore(t)
	execSchema(t, s, "CREATE TABLE env_info (name TEXT PRIMARY KEY, value TEXT, count INTEGER)")
	_, err := s.db.Exec("INSERT INTO env_info (name, value, count) VALUES (?, ?, ?)", "robots", "ChargePal1, ChargePal2", 2)
	require.NoError(t, err)

	infos, err := s.FetchEnvInfos()
	require.NoError(t, err)
	require.Equal(t, []string{"ChargePal1", "ChargePal2"}, infos["robots"])

	count, err := s.FetchEnvCount("robots")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestFetchRobotsAndCarts(t *testing.T) {
	s := newTestStore(t)
	execSchema(t, s,
		"CREATE TABLE robot_info (name TEXT PRIMARY KEY, robot_location TEXT, ongoing_action TEXT, previous_action TEXT, charge_percent REAL, error_count INTEGER)",
		"CREATE TABLE cart_info (name TEXT PRIMARY KEY, cart_location TEXT)",
	)
	_, err := s.db.Exec("INSERT INTO robot_info VALUES (?, ?, ?, ?, ?, ?)", "ChargePal1", "BCS_1", "idle", "", 87.5, 0)
	require.NoError(t, err)
	_, err = s.db.Exec("INSERT INTO cart_info VALUES (?, ?)", "Cart1", "ADS_1")
	require.NoError(t, err)

	robots, err := s.FetchRobots()
	require.NoError(t, err)
	require.Len(t, robots, 1)
	require.Equal(t, "ChargePal1", robots[0].Name)
	require.Equal(t, 87.5, robots[0].ChargePercent)

	carts, err := s.FetchCarts()
	require.NoError(t, err)
	require.Len(t, carts, 1)
	require.Equal(t, "ADS_1", carts[0].Location)
}

func TestUpdateLocationUpdatesRobotAndCart(t *testing.T) {
	s := newTestStore(t)
	execSchema(t, s,
		"CREATE TABLE robot_info (name TEXT PRIMARY KEY, robot_location TEXT)",
		"CREATE TABLE cart_info (name TEXT PRIMARY KEY, cart_location TEXT)",
	)
	_, err := s.db.Exec("INSERT INTO robot_info VALUES (?, ?)", "ChargePal1", "BCS_1")
	require.NoError(t, err)
	_, err = s.db.Exec("INSERT INTO cart_info VALUES (?, ?)", "Cart1", "BCS_1")
	require.NoError(t, err)

	require.NoError(t, s.UpdateLocation("ChargePal1", "ADS_1", "Cart1"))

	var robotLoc, cartLoc string
	require.NoError(t, s.db.QueryRow("SELECT robot_location FROM robot_info WHERE name = 'ChargePal1'").Scan(&robotLoc))
	require.NoError(t, s.db.QueryRow("SELECT cart_location FROM cart_info WHERE name = 'Cart1'").Scan(&cartLoc))
	require.Equal(t, "ADS_1", robotLoc)
	require.Equal(t, "ADS_1", cartLoc)
}

func TestUpdateAndFetchBatteryMessages(t *testing.T) {
	s := newTestStore(t)
	execSchema(t, s, "CREATE TABLE TX_ChargeOrdersFeedback (cart_name TEXT PRIMARY KEY, State_bat_mod TEXT, last_change TEXT)")
	_, err := s.db.Exec("INSERT INTO TX_ChargeOrdersFeedback VALUES (?, ?, ?)", "Cart1", "", "2020-01-01 00:00:00")
	require.NoError(t, err)

	require.NoError(t, s.UpdateBattery("Cart1", "start_charging"))

	rows, err := s.FetchBatteryMessages(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Cart1", rows[0].CartName)
	require.Equal(t, "start_charging", rows[0].State)
}
