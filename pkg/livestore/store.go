package livestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Config selects and configures the two LiveStore backends.
type Config struct {
	// MySQLDSN, if non-empty, is tried first (the primary, networked
	// backend). Example: "user:pass@tcp(host:3306)/LSV0002_DB".
	MySQLDSN string
	// SQLitePath is the embedded fallback, opened when MySQLDSN is
	// empty or unreachable.
	SQLitePath string
	// PingTimeout bounds the startup probe of the primary backend.
	PingTimeout time.Duration
}

// Store is the sole accessor to the externally shared live database.
type Store struct {
	db       *sql.DB
	backend  string
	filePath string
}

// Open selects a backend per the startup policy: try MySQL first if a
// DSN is configured, otherwise (or on failure) fall back to the
// embedded SQLite file.
func Open(cfg Config) (*Store, error) {
	timeout := cfg.PingTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			pingErr := db.PingContext(ctx)
			cancel()
			if pingErr == nil {
				return &Store{db: db, backend: "mysql"}, nil
			}
			db.Close()
		}
	}

	path := cfg.SQLitePath
	if path == "" {
		path = "ldb.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open embedded livestore fallback: %w", err)
	}
	return &Store{db: db, backend: "sqlite", filePath: path}, nil
}

// Backend reports which backend is currently serving requests
// ("mysql" or "sqlite").
func (s *Store) Backend() string {
	return s.backend
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DumpFile returns the raw bytes of the embedded SQLite file backing
// this Store, for the RPC façade's PullLDB. Only the sqlite backend
// has a single file to hand back; the networked MySQL backend has no
// analog.
func (s *Store) DumpFile() ([]byte, error) {
	if s.backend != "sqlite" {
		return nil, fmt.Errorf("PullLDB is not supported against the %s backend", s.backend)
	}
	return os.ReadFile(s.filePath)
}

// FetchByFirstHeader returns rows from table projected onto headers,
// keyed by the value of the first header column, mapped to the
// remaining columns by name. Every scanned text value passes through
// the LiveStore parsing rule.
func (s *Store) FetchByFirstHeader(table string, headers []string) (map[string]map[string]any, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("fetch_by_first_header: headers must not be empty")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(headers, ", "), table)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("fetch_by_first_header(%s): %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]any)
	for rows.Next() {
		values, err := scanRowValues(rows, len(headers))
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%v", values[0])
		rest := make(map[string]any, len(headers)-1)
		for i := 1; i < len(headers); i++ {
			rest[headers[i]] = values[i]
		}
		out[key] = rest
	}
	return out, rows.Err()
}

// FetchEnvInfos returns every env_info row's value parsed as a
// comma-separated list of strings, keyed by name.
func (s *Store) FetchEnvInfos() (map[string][]string, error) {
	rows, err := s.db.Query("SELECT name, value FROM env_info")
	if err != nil {
		return nil, fmt.Errorf("fetch_env_infos: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		var items []string
		for _, v := range strings.Split(value, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				items = append(items, v)
			}
		}
		out[name] = items
	}
	return out, rows.Err()
}

// FetchEnvCount returns the integer count column of the named
// env_info row.
func (s *Store) FetchEnvCount(name string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT count FROM env_info WHERE name = ?", name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("fetch_env_count(%s): %w", name, err)
	}
	return count, nil
}

// RobotRow is one parsed row of the robot_info table, restricted to
// the attributes the Reconciler copies into PlanStore (spec.md §4.D
// step 1).
type RobotRow struct {
	Name           string
	Location       string
	OngoingAction  string
	PreviousAction string
	ChargePercent  float64
	ErrorCount     int
}

// FetchRobots returns every robot_info row.
func (s *Store) FetchRobots() ([]RobotRow, error) {
	rows, err := s.db.Query("SELECT name, robot_location, ongoing_action, previous_action, charge_percent, error_count FROM robot_info")
	if err != nil {
		return nil, fmt.Errorf("fetch_robots: %w", err)
	}
	defer rows.Close()

	var out []RobotRow
	for rows.Next() {
		var r RobotRow
		if err := rows.Scan(&r.Name, &r.Location, &r.OngoingAction, &r.PreviousAction, &r.ChargePercent, &r.ErrorCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CartRow is one parsed row of the cart_info table, restricted to the
// location attribute the Reconciler copies into PlanStore (spec.md
// §4.D step 2).
type CartRow struct {
	Name     string
	Location string
}

// FetchCarts returns every cart_info row.
func (s *Store) FetchCarts() ([]CartRow, error) {
	rows, err := s.db.Query("SELECT name, cart_location FROM cart_info")
	if err != nil {
		return nil, fmt.Errorf("fetch_carts: %w", err)
	}
	defer rows.Close()

	var out []CartRow
	for rows.Next() {
		var c CartRow
		if err := rows.Scan(&c.Name, &c.Location); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// BookingHeaders lists the orders_in columns the core depends on
// (spec.md §6.1).
var BookingHeaders = []string{
	"charging_session_id",
	"drop_location",
	"charging_session_status",
	"drop_date_time",
	"pick_up_date_time",
	"plugintime_calculated",
	"booking_date_time_dev",
	"last_change",
	"Actual_Drop_SOC",
	"Actual_Target_SOC",
	"Actual_plugintime_calculated",
	"Actual_BEV_Drop_Time",
	"Actual_BEV_Pickup_Time",
	"BEV_slot_planned",
	"bev_Port_Location",
}

// BookingRow is one parsed row of the orders_in table.
type BookingRow struct {
	ID     int64
	Fields map[string]any
}

// FetchUpdatedBookings returns bookings whose last_change is at or
// after since. Callers MUST tolerate ties at the second boundary —
// this method advances nothing on its own; value-based diffing
// against a cached snapshot is the Reconciler's responsibility
// (spec.md §4.D), not LiveStore's.
func (s *Store) FetchUpdatedBookings(since time.Time) ([]BookingRow, error) {
	query := fmt.Sprintf("SELECT %s FROM orders_in WHERE last_change >= ?", strings.Join(BookingHeaders, ", "))
	rows, err := s.db.Query(query, since.Format(datetimeLayoutSQL))
	if err != nil {
		return nil, fmt.Errorf("fetch_updated_bookings: %w", err)
	}
	defer rows.Close()

	var out []BookingRow
	for rows.Next() {
		values, err := scanRowValues(rows, len(BookingHeaders))
		if err != nil {
			return nil, err
		}
		id, _ := toInt64(values[0])
		fields := make(map[string]any, len(BookingHeaders)-1)
		for i := 1; i < len(BookingHeaders); i++ {
			fields[BookingHeaders[i]] = values[i]
		}
		out = append(out, BookingRow{ID: id, Fields: fields})
	}
	return out, rows.Err()
}

const datetimeLayoutSQL = "2006-01-02 15:04:05"

// DeleteBookings clears the bookings table. Used once at startup in
// development mode.
func (s *Store) DeleteBookings() error {
	_, err := s.db.Exec("DELETE FROM orders_in")
	if err != nil {
		return fmt.Errorf("delete_bookings: %w", err)
	}
	return nil
}

// UpdateLocation pushes the robot's new location, and the cart's if
// cart is non-empty, into LiveStore. Both statements run in one
// scoped transaction.
func (s *Store) UpdateLocation(robot, location, cart string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("update_location: %w", err)
	}
	if _, err := tx.Exec("UPDATE robot_info SET robot_location = ? WHERE name = ?", location, robot); err != nil {
		tx.Rollback()
		return fmt.Errorf("update_location(robot): %w", err)
	}
	if cart != "" {
		if _, err := tx.Exec("UPDATE cart_info SET cart_location = ? WHERE name = ?", location, cart); err != nil {
			tx.Rollback()
			return fmt.Errorf("update_location(cart): %w", err)
		}
	}
	return tx.Commit()
}

// GetSessionStatuses returns every booking id mapped to its current
// charging_session_status.
func (s *Store) GetSessionStatuses() (map[int64]string, error) {
	rows, err := s.db.Query("SELECT charging_session_id, charging_session_status FROM orders_in")
	if err != nil {
		return nil, fmt.Errorf("get_session_statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		out[id] = status
	}
	return out, rows.Err()
}

// UpdateSessionStatus writes the new status, then the last_change
// watermark, as two sequential statements — matching the original
// source's two-statement update rather than one combined UPDATE, so
// readers racing between them always see a consistent prior status.
func (s *Store) UpdateSessionStatus(id int64, status string) error {
	if _, err := s.db.Exec("UPDATE orders_in SET charging_session_status = ? WHERE charging_session_id = ?", status, id); err != nil {
		return fmt.Errorf("update_session_status(status): %w", err)
	}
	now := time.Now().Format(datetimeLayoutSQL)
	if _, err := s.db.Exec("UPDATE orders_in SET last_change = ? WHERE charging_session_id = ?", now, id); err != nil {
		return fmt.Errorf("update_session_status(last_change): %w", err)
	}
	return nil
}

// BatteryRow is one parsed battery-state message for a cart.
type BatteryRow struct {
	CartName   string
	LastChange time.Time
	State      string
}

// UpdateBattery records a battery command outcome against the
// TX_ChargeOrdersFeedback table.
func (s *Store) UpdateBattery(cart, state string) error {
	_, err := s.db.Exec(
		"UPDATE TX_ChargeOrdersFeedback SET State_bat_mod = ?, last_change = ? WHERE cart_name = ?",
		state, time.Now().Format(datetimeLayoutSQL), cart,
	)
	if err != nil {
		return fmt.Errorf("update_battery: %w", err)
	}
	return nil
}

// FetchBatteryMessages returns battery state rows changed at or after
// since, for BatteryMonitor's poll (spec.md §4.I).
func (s *Store) FetchBatteryMessages(since time.Time) ([]BatteryRow, error) {
	rows, err := s.db.Query(
		"SELECT cart_name, last_change, State_bat_mod FROM TX_ChargeOrdersFeedback WHERE last_change >= ?",
		since.Format(datetimeLayoutSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch_battery_messages: %w", err)
	}
	defer rows.Close()

	var out []BatteryRow
	for rows.Next() {
		var cart, lastChange, state string
		if err := rows.Scan(&cart, &lastChange, &state); err != nil {
			return nil, err
		}
		t, _ := time.ParseInLocation(datetimeLayoutSQL, lastChange, time.Local)
		out = append(out, BatteryRow{CartName: cart, LastChange: t, State: state})
	}
	return out, rows.Err()
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		var i int64
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return i, true
		}
	}
	return 0, false
}

// scanRowValues scans n columns out of rows, normalizing NULLs to nil
// and running every text value through the parsing rule.
func scanRowValues(rows *sql.Rows, n int) ([]any, error) {
	raw := make([]sql.NullString, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	values := make([]any, n)
	for i, v := range raw {
		if !v.Valid {
			values[i] = nil
			continue
		}
		values[i] = parseAny(v.String)
	}
	return values, nil
}
