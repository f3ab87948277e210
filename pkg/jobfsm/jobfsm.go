package jobfsm

import (
	"fmt"
	"time"

	"github.com/chargepal/fleetctl/pkg/livestore"
	"github.com/chargepal/fleetctl/pkg/log"
	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/rs/zerolog"
)

// RobotJobDuration is used to derive a job's deadline from a booking's
// pickup time and plug duration.
const RobotJobDuration = time.Minute

// FSM drives job and booking transitions.
type FSM struct {
	ldb    *livestore.Store
	logger zerolog.Logger
}

// New returns an FSM that pushes location and session-status updates
// into ldb as a side effect of job transitions. ldb may be nil in
// tests that do not need LiveStore side effects.
func New(ldb *livestore.Store) *FSM {
	return &FSM{ldb: ldb, logger: log.WithComponent("jobfsm")}
}

// HandleBookingChange applies the booking-status side effects of
// spec.md §4.G "Updated bookings" to b, which the Reconciler has
// already upserted into PlanStore with its new status.
func (f *FSM) HandleBookingChange(tx *planstore.Tx, b *types.Booking) error {
	switch b.Status {
	case types.BookingCheckedIn:
		existing, err := tx.ListJobsByBooking(b.ID)
		if err != nil {
			return err
		}
		for _, j := range existing {
			if j.Type == types.JobBringCharger && (j.State == types.JobOpen || j.State == types.JobPending || j.State == types.JobOngoing) {
				return nil
			}
		}

		id, err := tx.NextJobID()
		if err != nil {
			return err
		}
		deadline := b.PlannedPickup.Add(-b.PlugDuration).Add(-RobotJobDuration)
		job := &types.Job{
			ID:            id,
			Type:          types.JobBringCharger,
			State:         types.JobOpen,
			Schedule:      b.PlannedDropTime,
			Deadline:      &deadline,
			BookingID:     b.ID,
			TargetStation: b.DropLocation,
		}
		if err := tx.PutJob(job); err != nil {
			return err
		}
		b.Status = types.BookingBooked
		return tx.PutBooking(b)

	case types.BookingPending:
		b.PlugInState = types.PlugInBEVPending
		return tx.PutBooking(b)

	case types.BookingReady:
		carts, err := tx.ListCarts()
		if err != nil {
			return err
		}
		for _, c := range carts {
			if c.BookingID == b.ID {
				return f.HandleChargerCommand(tx, c.Name, types.ChargerBookingFulfilled)
			}
		}
		return nil

	case types.BookingCanceled:
		return f.cancelJobsForBooking(tx, b.ID)
	}
	return nil
}

// cancelJobsForBooking cancels every live job for bookingID and
// returns its robot, cart, and target-station reservations to the
// free pool.
func (f *FSM) cancelJobsForBooking(tx *planstore.Tx, bookingID int64) error {
	jobs, err := tx.ListJobsByBooking(bookingID)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if j.State != types.JobOpen && j.State != types.JobPending && j.State != types.JobOngoing {
			continue
		}
		if err := f.freeJobResources(tx, j); err != nil {
			return err
		}
		j.State = types.JobCanceled
		j.CurrentlyAssigned = false
		if err := tx.PutJob(j); err != nil {
			return err
		}
	}
	return nil
}

func (f *FSM) freeJobResources(tx *planstore.Tx, j *types.Job) error {
	if j.RobotName != "" {
		if r, err := tx.GetRobot(j.RobotName); err == nil {
			r.Available = true
			r.CurrentJobID = 0
			if err := tx.PutRobot(r); err != nil {
				return err
			}
		}
	}
	if j.CartName != "" {
		if c, err := tx.GetCart(j.CartName); err == nil {
			c.Available = true
			if err := tx.PutCart(c); err != nil {
				return err
			}
		}
	}
	if j.TargetStation != "" {
		if st, err := tx.GetStation(j.TargetStation); err == nil {
			st.Reservation = ""
			st.Available = true
			if err := tx.PutStation(st); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleChargerCommand applies the charger-command effects of
// spec.md §4.G "Charger commands" for cart.
func (f *FSM) HandleChargerCommand(tx *planstore.Tx, cart string, cmd types.ChargerCommand) error {
	switch cmd {
	case types.ChargerStartCharging, types.ChargerStartRecharging:
		return nil

	case types.ChargerStopRecharging:
		c, err := tx.GetCart(cart)
		if err != nil {
			return err
		}
		c.Available = true
		if err := tx.PutCart(c); err != nil {
			return err
		}
		open, err := tx.ListJobsByState(types.JobOpen)
		if err != nil {
			return err
		}
		for _, j := range open {
			if j.Type == types.JobRechargeCharger {
				id, err := tx.NextJobID()
				if err != nil {
					return err
				}
				return tx.PutJob(&types.Job{
					ID: id, Type: types.JobStowCharger, State: types.JobOpen,
					CartName: cart, Schedule: time.Now(),
				})
			}
		}
		return nil

	case types.ChargerRetrieve, types.ChargerBookingFulfilled:
		c, err := tx.GetCart(cart)
		if err != nil {
			return err
		}
		if c.BookingID == 0 {
			return fmt.Errorf("charger command %s: cart %s has no current booking", cmd, cart)
		}
		b, err := tx.GetBooking(c.BookingID)
		if err != nil {
			return err
		}
		id, err := tx.NextJobID()
		if err != nil {
			return err
		}
		// Cart-booking binding is cleared on RETRIEVE_CHARGER
		// *completion*, not here at creation (spec.md §9 Open
		// Question, resolved for the newest source revision).
		return tx.PutJob(&types.Job{
			ID: id, Type: types.JobRetrieveCharger, State: types.JobOpen,
			CartName: cart, SourceStation: b.DropLocation, BookingID: b.ID,
			Schedule: time.Now(),
		})
	}
	return fmt.Errorf("unknown charger command %q", cmd)
}

// HandleRobotJobUpdate applies a robot-reported job status to the job
// currently assigned to robot. success reports whether robot had an
// assigned job at all, matching UpdateJobMonitor's response contract.
func (f *FSM) HandleRobotJobUpdate(tx *planstore.Tx, robot string, status types.RobotJobStatus) (bool, error) {
	r, err := tx.GetRobot(robot)
	if err != nil {
		return false, err
	}
	if r.CurrentJobID == 0 {
		return false, nil
	}
	job, err := tx.GetJob(r.CurrentJobID)
	if err != nil {
		return false, err
	}

	switch status {
	case types.RobotJobSuccess:
		return true, f.handleSuccess(tx, r, job)
	case types.RobotJobFailure:
		return true, f.handleFailure(tx, r, job)
	case types.RobotJobRecovery, types.RobotJobOngoing:
		return true, nil
	default:
		return false, fmt.Errorf("unknown robot job status %q", status)
	}
}

func (f *FSM) handleSuccess(tx *planstore.Tx, r *types.Robot, job *types.Job) error {
	now := time.Now()
	job.State = types.JobComplete
	job.CurrentlyAssigned = false
	job.EndedAt = &now

	if job.SourceStation != "" {
		if src, err := tx.GetStation(job.SourceStation); err == nil {
			src.Available = true
			if err := tx.PutStation(src); err != nil {
				return err
			}
		}
	}
	if job.TargetStation != "" {
		if tgt, err := tx.GetStation(job.TargetStation); err == nil && tgt.Reservation == job.CartName {
			tgt.Reservation = ""
			if err := tx.PutStation(tgt); err != nil {
				return err
			}
		}
	}

	if f.ldb != nil {
		if err := f.ldb.UpdateLocation(r.Name, job.TargetStation, job.CartName); err != nil {
			f.logger.Warn().Err(err).Str("robot", r.Name).Msg("push location to livestore failed")
		}
	}
	r.Location = job.TargetStation
	r.CurrentJobID = 0
	r.Cart = ""
	r.Available = true
	if err := tx.PutRobot(r); err != nil {
		return err
	}

	switch job.Type {
	case types.JobBringCharger:
		if job.BookingID != 0 {
			if b, err := tx.GetBooking(job.BookingID); err == nil {
				b.PlugInState = types.PlugInSuccess
				if err := tx.PutBooking(b); err != nil {
					return err
				}
			}
		}

	case types.JobStowCharger:
		if job.CartName != "" {
			if c, err := tx.GetCart(job.CartName); err == nil {
				c.Available = true
				c.Location = job.TargetStation
				if err := tx.PutCart(c); err != nil {
					return err
				}
			}
		}
		bcs, err := tx.ListStationsByPrefix(types.PrefixBCS)
		if err != nil {
			return err
		}
		if len(bcs) > 0 {
			id, err := tx.NextJobID()
			if err != nil {
				return err
			}
			if err := tx.PutJob(&types.Job{
				ID: id, Type: types.JobRechargeCharger, State: types.JobOpen,
				CartName: job.CartName, Schedule: time.Now(),
			}); err != nil {
				return err
			}
		}

	default:
		if job.CartName != "" {
			if c, err := tx.GetCart(job.CartName); err == nil {
				c.Location = job.TargetStation
				if err := tx.PutCart(c); err != nil {
					return err
				}
			}
		}
	}

	if job.BookingID != 0 && (job.Type == types.JobRechargeCharger || job.Type == types.JobStowCharger) && job.CartName != "" {
		if c, err := tx.GetCart(job.CartName); err == nil && c.BookingID == job.BookingID {
			c.BookingID = 0
			if err := tx.PutCart(c); err != nil {
				return err
			}
		}
	}

	return tx.PutJob(job)
}

func (f *FSM) handleFailure(tx *planstore.Tx, r *types.Robot, job *types.Job) error {
	job.State = types.JobFailed
	job.CurrentlyAssigned = false
	if err := tx.PutJob(job); err != nil {
		return err
	}

	if job.CartName != "" {
		if c, err := tx.GetCart(job.CartName); err == nil {
			c.Available = true
			if err := tx.PutCart(c); err != nil {
				return err
			}
			if c.BookingID != 0 {
				if b, err := tx.GetBooking(c.BookingID); err == nil && b.Status != types.BookingCheckedIn {
					b.Status = types.BookingCheckedIn
					if err := tx.PutBooking(b); err != nil {
						return err
					}
					if f.ldb != nil {
						if err := f.ldb.UpdateSessionStatus(b.ID, string(types.BookingCheckedIn)); err != nil {
							f.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("reset session status in livestore failed")
						}
					}
				}
			}
		}
	}
	if job.TargetStation != "" {
		if st, err := tx.GetStation(job.TargetStation); err == nil && st.Reservation == job.CartName {
			st.Reservation = ""
			if err := tx.PutStation(st); err != nil {
				return err
			}
		}
	}

	r.CurrentJobID = 0
	r.Available = true
	return tx.PutRobot(r)
}

// FetchJob returns robot's currently assigned job, if any, and
// transitions it PENDING -> ONGOING. Matches RPC FetchJob's contract
// in spec.md §6.2: called once per robot poll, idempotent for a robot
// already ONGOING.
func (f *FSM) FetchJob(tx *planstore.Tx, robot string) (*types.Job, error) {
	r, err := tx.GetRobot(robot)
	if err != nil {
		return nil, nil
	}
	if r.CurrentJobID == 0 {
		return nil, nil
	}
	job, err := tx.GetJob(r.CurrentJobID)
	if err != nil {
		return nil, nil
	}
	if job.State == types.JobPending {
		job.State = types.JobOngoing
		if err := tx.PutJob(job); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// HandlePlugInHandshake advances the plug-in state for robot's
// currently assigned job's booking, per spec.md §4.G. Idempotent.
func (f *FSM) HandlePlugInHandshake(tx *planstore.Tx, robot string) (bool, error) {
	r, err := tx.GetRobot(robot)
	if err != nil {
		return false, err
	}
	if r.CurrentJobID == 0 {
		return false, nil
	}
	job, err := tx.GetJob(r.CurrentJobID)
	if err != nil || job.BookingID == 0 {
		return false, nil
	}
	b, err := tx.GetBooking(job.BookingID)
	if err != nil {
		return false, nil
	}

	switch b.PlugInState {
	case types.PlugInBringCharger:
		b.PlugInState = types.PlugInRobotReady
		if err := tx.PutBooking(b); err != nil {
			return false, err
		}
		if f.ldb != nil {
			if err := f.ldb.UpdateSessionStatus(b.ID, string(types.BookingPending)); err != nil {
				f.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("push pending status to livestore failed")
			}
		}
		return false, nil

	case types.PlugInBEVPending:
		b.PlugInState = types.PlugInPlugged
		return true, tx.PutBooking(b)

	default:
		return false, nil
	}
}
