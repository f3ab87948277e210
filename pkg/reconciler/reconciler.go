package reconciler

import (
	"fmt"
	"reflect"
	"time"

	"github.com/chargepal/fleetctl/pkg/livestore"
	"github.com/chargepal/fleetctl/pkg/log"
	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/rs/zerolog"
)

// Reconciler pulls LiveStore rows into PlanStore once per tick and
// value-diffs bookings against a cached snapshot (spec.md §4.D).
type Reconciler struct {
	ldb     *livestore.Store
	logger  zerolog.Logger
	fetched map[int64]types.Booking
}

// New returns a Reconciler reading from ldb.
func New(ldb *livestore.Store) *Reconciler {
	return &Reconciler{
		ldb:     ldb,
		logger:  log.WithComponent("reconciler"),
		fetched: map[int64]types.Booking{},
	}
}

// SyncRobots copies robot attributes into tx, keyed by name. Robots
// unknown to PlanStore are skipped; this method never inserts a robot.
func (r *Reconciler) SyncRobots(tx *planstore.Tx) error {
	rows, err := r.ldb.FetchRobots()
	if err != nil {
		return fmt.Errorf("sync robots: %w", err)
	}
	for _, row := range rows {
		robot, err := tx.GetRobot(row.Name)
		if err != nil {
			continue
		}
		robot.Location = row.Location
		robot.OngoingAction = row.OngoingAction
		robot.PreviousAction = row.PreviousAction
		robot.ChargePercent = row.ChargePercent
		robot.ErrorCount = row.ErrorCount
		robot.UpdatedAt = time.Now()
		if err := tx.PutRobot(robot); err != nil {
			return err
		}
	}
	return nil
}

// SyncCarts copies cart locations into tx, keyed by name.
func (r *Reconciler) SyncCarts(tx *planstore.Tx) error {
	rows, err := r.ldb.FetchCarts()
	if err != nil {
		return fmt.Errorf("sync carts: %w", err)
	}
	for _, row := range rows {
		cart, err := tx.GetCart(row.Name)
		if err != nil {
			continue
		}
		cart.Location = row.Location
		cart.UpdatedAt = time.Now()
		if err := tx.PutCart(cart); err != nil {
			return err
		}
	}
	return nil
}

// DiffBookings fetches every booking from LiveStore, upserts it into
// tx, and returns the subset whose value differs from the cached
// snapshot `fetched`. The cache is updated before returning, so a
// booking reported once is not reported again until it changes again.
func (r *Reconciler) DiffBookings(tx *planstore.Tx) ([]*types.Booking, error) {
	rows, err := r.ldb.FetchUpdatedBookings(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("diff bookings: %w", err)
	}

	var changed []*types.Booking
	for _, row := range rows {
		b := parseBookingRow(row)
		if existing, err := tx.GetBooking(b.ID); err == nil {
			// LiveStore is the source of truth for Status and the
			// Actual* timestamps; only carry over what it doesn't report.
			b.PlugInState = existing.PlugInState
			b.CreatedAt = existing.CreatedAt
			b.CompletedAt = existing.CompletedAt
		} else {
			b.CreatedAt = time.Now()
		}

		if cached, ok := r.fetched[b.ID]; !ok || !reflect.DeepEqual(cached, *b) {
			changed = append(changed, b)
		}
		r.fetched[b.ID] = *b

		if err := tx.PutBooking(b); err != nil {
			return nil, err
		}
	}
	if len(changed) > 0 {
		r.logger.Debug().Int("count", len(changed)).Msg("bookings changed this tick")
	}
	return changed, nil
}

// parseBookingRow converts one LiveStore orders_in row into a
// types.Booking. Fields missing or of an unexpected dynamic type are
// left at their zero value rather than failing the tick.
func parseBookingRow(row livestore.BookingRow) *types.Booking {
	b := &types.Booking{ID: row.ID}
	if s, ok := row.Fields["drop_location"].(string); ok {
		b.DropLocation = s
	}
	if s, ok := row.Fields["charging_session_status"].(string); ok {
		b.Status = types.BookingStatus(s)
	}
	if t, ok := row.Fields["drop_date_time"].(time.Time); ok {
		b.PlannedDropTime = t
	}
	if t, ok := row.Fields["pick_up_date_time"].(time.Time); ok {
		b.PlannedPickup = t
	}
	if d, ok := row.Fields["plugintime_calculated"].(time.Duration); ok {
		b.PlugDuration = d
	}
	if t, ok := row.Fields["last_change"].(time.Time); ok {
		b.LastChange = t
	}
	if f, ok := toFloat(row.Fields["Actual_Drop_SOC"]); ok {
		b.DropSOC = f
	}
	if f, ok := toFloat(row.Fields["Actual_Target_SOC"]); ok {
		b.TargetSOC = f
	}
	if t, ok := row.Fields["Actual_BEV_Drop_Time"].(time.Time); ok {
		b.ActualDropTime = &t
	}
	if t, ok := row.Fields["Actual_BEV_Pickup_Time"].(time.Time); ok {
		b.ActualPickup = &t
	}
	return b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}
