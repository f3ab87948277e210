package jobfsm

import (
	"testing"
	"time"

	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *planstore.Store {
	t.Helper()
	s, err := planstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHandleBookingChangeCheckedInCreatesOpenJob(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)

	booking := &types.Booking{
		ID: 1, Status: types.BookingCheckedIn, DropLocation: "ADS_1",
		PlannedDropTime: time.Now(), PlannedPickup: time.Now().Add(2 * time.Hour),
		PlugDuration: time.Minute,
	}
	require.NoError(t, fsm.HandleBookingChange(tx, booking))
	require.NoError(t, tx.Commit())
	require.Equal(t, types.BookingBooked, booking.Status)

	tx2, err := s.Begin()
	require.NoError(t, err)
	defer tx2.Rollback()

	jobs, err := tx2.ListJobsByState(types.JobOpen)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, types.JobBringCharger, jobs[0].Type)
	require.Equal(t, "ADS_1", jobs[0].TargetStation)
}

func TestHandleBookingChangeCheckedInSkipsDuplicateJob(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutJob(&types.Job{
		ID: 1, Type: types.JobBringCharger, State: types.JobPending, BookingID: 9, TargetStation: "ADS_1",
	}))
	require.NoError(t, tx.Commit())

	// A re-reported checked_in booking (e.g. last_change ticking up
	// with no real transition) must not spawn a second BRING_CHARGER.
	tx2, err := s.Begin()
	require.NoError(t, err)
	booking := &types.Booking{ID: 9, Status: types.BookingCheckedIn, DropLocation: "ADS_1"}
	require.NoError(t, fsm.HandleBookingChange(tx2, booking))
	require.NoError(t, tx2.Commit())

	tx3, err := s.Begin()
	require.NoError(t, err)
	defer tx3.Rollback()
	jobs, err := tx3.ListJobsByBooking(9)
	require.NoError(t, err)
	require.Len(t, jobs, 1, "an already-open BRING_CHARGER for this booking must not be duplicated")
}

func TestHandleBookingChangeCanceledFreesResources(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", Available: false, CurrentJobID: 1}))
	require.NoError(t, tx.PutCart(&types.Cart{Name: "BAT_1", Available: false, BookingID: 7}))
	require.NoError(t, tx.PutStation(&types.Station{Name: "ADS_1", Prefix: types.PrefixADS, Reservation: "BAT_1"}))
	require.NoError(t, tx.PutJob(&types.Job{
		ID: 1, Type: types.JobBringCharger, State: types.JobPending, BookingID: 7,
		RobotName: "ChargePal1", CartName: "BAT_1", TargetStation: "ADS_1", CurrentlyAssigned: true,
	}))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, fsm.HandleBookingChange(tx2, &types.Booking{ID: 7, Status: types.BookingCanceled}))
	require.NoError(t, tx2.Commit())

	tx3, err := s.Begin()
	require.NoError(t, err)
	defer tx3.Rollback()

	job, err := tx3.GetJob(1)
	require.NoError(t, err)
	require.Equal(t, types.JobCanceled, job.State)
	require.False(t, job.CurrentlyAssigned)

	robot, err := tx3.GetRobot("ChargePal1")
	require.NoError(t, err)
	require.True(t, robot.Available)

	cart, err := tx3.GetCart("BAT_1")
	require.NoError(t, err)
	require.True(t, cart.Available)

	station, err := tx3.GetStation("ADS_1")
	require.NoError(t, err)
	require.Empty(t, station.Reservation)
}

func TestHandleRobotJobUpdateSuccessFreesAndCompletes(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", CurrentJobID: 1, Location: "BCS_1"}))
	require.NoError(t, tx.PutStation(&types.Station{Name: "RBS_1", Prefix: types.PrefixRBS, Available: false}))
	require.NoError(t, tx.PutJob(&types.Job{
		ID: 1, Type: types.JobRechargeSelf, State: types.JobOngoing,
		RobotName: "ChargePal1", SourceStation: "BCS_1", TargetStation: "RBS_1", CurrentlyAssigned: true,
	}))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin()
	require.NoError(t, err)
	had, err := fsm.HandleRobotJobUpdate(tx2, "ChargePal1", types.RobotJobSuccess)
	require.NoError(t, err)
	require.True(t, had)
	require.NoError(t, tx2.Commit())

	tx3, err := s.Begin()
	require.NoError(t, err)
	defer tx3.Rollback()

	job, err := tx3.GetJob(1)
	require.NoError(t, err)
	require.Equal(t, types.JobComplete, job.State)

	robot, err := tx3.GetRobot("ChargePal1")
	require.NoError(t, err)
	require.True(t, robot.Available)
	require.Equal(t, "RBS_1", robot.Location)
	require.Equal(t, int64(0), robot.CurrentJobID)
}

func TestHandleRobotJobUpdateFailureReturnsCartAndBooking(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", CurrentJobID: 1}))
	require.NoError(t, tx.PutCart(&types.Cart{Name: "BAT_1", Available: false, BookingID: 1}))
	require.NoError(t, tx.PutBooking(&types.Booking{ID: 1, Status: types.BookingBooked}))
	require.NoError(t, tx.PutJob(&types.Job{
		ID: 1, Type: types.JobBringCharger, State: types.JobOngoing,
		RobotName: "ChargePal1", CartName: "BAT_1", BookingID: 1, CurrentlyAssigned: true,
	}))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin()
	require.NoError(t, err)
	had, err := fsm.HandleRobotJobUpdate(tx2, "ChargePal1", types.RobotJobFailure)
	require.NoError(t, err)
	require.True(t, had)
	require.NoError(t, tx2.Commit())

	tx3, err := s.Begin()
	require.NoError(t, err)
	defer tx3.Rollback()

	job, err := tx3.GetJob(1)
	require.NoError(t, err)
	require.Equal(t, types.JobFailed, job.State)

	cart, err := tx3.GetCart("BAT_1")
	require.NoError(t, err)
	require.True(t, cart.Available)

	booking, err := tx3.GetBooking(1)
	require.NoError(t, err)
	require.Equal(t, types.BookingCheckedIn, booking.Status)
}

func TestHandlePlugInHandshakeProgression(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", CurrentJobID: 1}))
	require.NoError(t, tx.PutBooking(&types.Booking{ID: 3, PlugInState: types.PlugInBringCharger}))
	require.NoError(t, tx.PutJob(&types.Job{ID: 1, BookingID: 3}))
	require.NoError(t, tx.Commit())

	// First call: BRING_CHARGER -> ROBOT_READY2PLUG, returns false.
	tx2, err := s.Begin()
	require.NoError(t, err)
	ready, err := fsm.HandlePlugInHandshake(tx2, "ChargePal1")
	require.NoError(t, err)
	require.False(t, ready)
	require.NoError(t, tx2.Commit())

	// Second call before external BEV_PENDING: still not ready, idempotent no-op.
	tx3, err := s.Begin()
	require.NoError(t, err)
	ready, err = fsm.HandlePlugInHandshake(tx3, "ChargePal1")
	require.NoError(t, err)
	require.False(t, ready)
	require.NoError(t, tx3.Commit())

	// External reconcile advances plugin_state to BEV_PENDING.
	tx4, err := s.Begin()
	require.NoError(t, err)
	b, err := tx4.GetBooking(3)
	require.NoError(t, err)
	b.PlugInState = types.PlugInBEVPending
	require.NoError(t, tx4.PutBooking(b))
	require.NoError(t, tx4.Commit())

	// Third call: BEV_PENDING -> PLUG_IN, returns true.
	tx5, err := s.Begin()
	require.NoError(t, err)
	ready, err = fsm.HandlePlugInHandshake(tx5, "ChargePal1")
	require.NoError(t, err)
	require.True(t, ready)
	require.NoError(t, tx5.Commit())
}

func TestFetchJobTransitionsPendingToOngoing(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1", CurrentJobID: 1}))
	require.NoError(t, tx.PutJob(&types.Job{
		ID: 1, Type: types.JobBringCharger, State: types.JobPending,
		RobotName: "ChargePal1", CartName: "Cart1",
		SourceStation: "BCS_1", TargetStation: "ADS_1",
	}))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin()
	require.NoError(t, err)
	job, err := fsm.FetchJob(tx2, "ChargePal1")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, types.JobOngoing, job.State)
	require.NoError(t, tx2.Commit())

	tx3, err := s.Begin()
	require.NoError(t, err)
	defer tx3.Rollback()
	stored, err := tx3.GetJob(1)
	require.NoError(t, err)
	require.Equal(t, types.JobOngoing, stored.State)

	// Idempotent: a robot already ONGOING is returned unchanged.
	job2, err := fsm.FetchJob(tx3, "ChargePal1")
	require.NoError(t, err)
	require.Equal(t, types.JobOngoing, job2.State)
}

func TestFetchJobReturnsNilWhenRobotHasNoJob(t *testing.T) {
	s := newTestStore(t)
	fsm := New(nil)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutRobot(&types.Robot{Name: "ChargePal1"}))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin()
	require.NoError(t, err)
	defer tx2.Rollback()
	job, err := fsm.FetchJob(tx2, "ChargePal1")
	require.NoError(t, err)
	require.Nil(t, job)
}
