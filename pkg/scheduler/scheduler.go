package scheduler

import (
	"time"

	"github.com/chargepal/fleetctl/pkg/log"
	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/stationpicker"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/rs/zerolog"
)

// Scheduler binds carts, robots, and stations to open jobs once per
// tick, per spec.md §4.F.
type Scheduler struct {
	picker *stationpicker.Picker
	logger zerolog.Logger
}

// New returns a Scheduler backed by picker for the BWS selection that
// needs blocker-set persistence across a station-picker exhaustion
// retry (spec scenario S6).
func New(picker *stationpicker.Picker) *Scheduler {
	return &Scheduler{picker: picker, logger: log.WithComponent("scheduler")}
}

// ScheduleTick dispatches every OPEN job to its per-type handler, then
// synthesizes RECHARGE_SELF jobs for idle robots. Jobs that cannot be
// scheduled this tick (no free resource) are left OPEN and retried
// next tick.
func (s *Scheduler) ScheduleTick(tx *planstore.Tx) error {
	open, err := tx.ListJobsByState(types.JobOpen)
	if err != nil {
		return err
	}
	for _, job := range open {
		var err error
		switch job.Type {
		case types.JobBringCharger:
			err = s.scheduleBringCharger(tx, job)
		case types.JobRetrieveCharger:
			err = s.scheduleRetrieveCharger(tx, job)
		case types.JobStowCharger:
			err = s.scheduleStowCharger(tx, job)
		case types.JobRechargeCharger:
			err = s.scheduleRechargeCharger(tx, job)
		}
		if err != nil {
			return err
		}
	}
	return s.scheduleRechargeSelf(tx)
}

// isStationOccupied reports whether name holds a reservation or any
// cart is located at it. Robot locations are not checked.
func isStationOccupied(tx *planstore.Tx, name string) (bool, error) {
	st, err := tx.GetStation(name)
	if err != nil {
		return false, err
	}
	if st.Reservation != "" {
		return true, nil
	}
	carts, err := tx.ListCarts()
	if err != nil {
		return false, err
	}
	for _, c := range carts {
		if c.Location == name {
			return true, nil
		}
	}
	return false, nil
}

// popNearestCart returns the nearest available cart to location whose
// ChargePercent is at least minCharge, or nil if none qualifies.
func popNearestCart(tx *planstore.Tx, location string, minCharge float64) (*types.Cart, error) {
	carts, err := tx.ListCarts()
	if err != nil {
		return nil, err
	}
	var best *types.Cart
	bestDist := -1.0
	for _, c := range carts {
		if !c.Available || c.ChargePercent < minCharge {
			continue
		}
		d := tx.Distance(c.Location, location)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, nil
}

// popNearestRobot returns the nearest available robot to location, or
// nil if none is available.
func popNearestRobot(tx *planstore.Tx, location string) (*types.Robot, error) {
	robots, err := tx.ListRobots()
	if err != nil {
		return nil, err
	}
	var best *types.Robot
	bestDist := -1.0
	for _, r := range robots {
		if !r.Available {
			continue
		}
		d := tx.Distance(r.Location, location)
		if bestDist < 0 || d < bestDist {
			best, bestDist = r, d
		}
	}
	return best, nil
}

// nearestFreeStation returns the nearest unreserved, unoccupied
// station with prefix to location, or "" if every such station is
// occupied.
func nearestFreeStation(tx *planstore.Tx, prefix types.StationPrefix, location string) (string, error) {
	stations, err := tx.ListStationsByPrefix(prefix)
	if err != nil {
		return "", err
	}
	best := ""
	bestDist := -1.0
	for _, st := range stations {
		occupied, err := isStationOccupied(tx, st.Name)
		if err != nil {
			return "", err
		}
		if occupied {
			continue
		}
		d := tx.Distance(st.Name, location)
		if bestDist < 0 || d < bestDist {
			best, bestDist = st.Name, d
		}
	}
	return best, nil
}

// scheduleBringCharger implements spec.md §4.F's BRING_CHARGER rule:
// skip if the target is occupied, pick the nearest cart able to meet
// the booking's charge request, then the nearest robot to that cart.
func (s *Scheduler) scheduleBringCharger(tx *planstore.Tx, job *types.Job) error {
	occupied, err := isStationOccupied(tx, job.TargetStation)
	if err != nil {
		return err
	}
	if occupied {
		return nil
	}

	minCharge := 0.0
	if job.BookingID != 0 {
		b, err := tx.GetBooking(job.BookingID)
		if err == nil {
			minCharge = b.ChargeRequest()
		}
	}
	cart, err := popNearestCart(tx, job.TargetStation, minCharge)
	if err != nil || cart == nil {
		return err
	}
	robot, err := popNearestRobot(tx, cart.Location)
	if err != nil || robot == nil {
		return err
	}

	cart.Available = false
	cart.BookingID = job.BookingID
	if err := tx.PutCart(cart); err != nil {
		return err
	}
	robot.Available = false
	robot.CurrentJobID = job.ID
	if err := tx.PutRobot(robot); err != nil {
		return err
	}
	target, err := tx.GetStation(job.TargetStation)
	if err != nil {
		return err
	}
	target.Reservation = cart.Name
	if err := tx.PutStation(target); err != nil {
		return err
	}

	if job.BookingID != 0 {
		if b, err := tx.GetBooking(job.BookingID); err == nil {
			b.PlugInState = types.PlugInBringCharger
			if err := tx.PutBooking(b); err != nil {
				return err
			}
		}
	}

	job.State = types.JobPending
	job.CurrentlyAssigned = true
	job.RobotName = robot.Name
	job.CartName = cart.Name
	job.SourceStation = cart.Location
	now := time.Now()
	job.StartedAt = &now
	return tx.PutJob(job)
}

// scheduleRetrieveCharger implements spec.md §4.F's RETRIEVE_CHARGER
// rule: assign the nearest robot to the source, then upgrade the job
// in place to RECHARGE_CHARGER if a BCS is free, else to STOW_CHARGER
// via the StationPicker's BWS fallback.
func (s *Scheduler) scheduleRetrieveCharger(tx *planstore.Tx, job *types.Job) error {
	robot, err := popNearestRobot(tx, job.SourceStation)
	if err != nil || robot == nil {
		return err
	}

	bcs, err := nearestFreeStation(tx, types.PrefixBCS, job.SourceStation)
	if err != nil {
		return err
	}
	if bcs != "" {
		station, err := tx.GetStation(bcs)
		if err != nil {
			return err
		}
		station.Reservation = job.CartName
		if err := tx.PutStation(station); err != nil {
			return err
		}
		job.Type = types.JobRechargeCharger
		job.TargetStation = bcs
	} else {
		bws, err := s.picker.SearchFreeStation(tx, robot.Name, types.PrefixBWS)
		if err != nil {
			return err
		}
		if bws == "" {
			s.logger.Warn().Str("job_cart", job.CartName).Msg("no free BCS or BWS station, retrying next tick")
			return nil
		}
		station, err := tx.GetStation(bws)
		if err != nil {
			return err
		}
		station.Reservation = job.CartName
		if err := tx.PutStation(station); err != nil {
			return err
		}
		job.Type = types.JobStowCharger
		job.TargetStation = bws
	}

	robot.Available = false
	robot.CurrentJobID = job.ID
	if err := tx.PutRobot(robot); err != nil {
		return err
	}

	job.State = types.JobPending
	job.CurrentlyAssigned = true
	job.RobotName = robot.Name
	now := time.Now()
	job.StartedAt = &now
	return tx.PutJob(job)
}

// scheduleStowCharger assigns a robot and a free BWS for a directly
// created STOW_CHARGER job (one not upgraded from RETRIEVE_CHARGER).
func (s *Scheduler) scheduleStowCharger(tx *planstore.Tx, job *types.Job) error {
	if job.RobotName != "" {
		return nil
	}
	cart, err := tx.GetCart(job.CartName)
	if err != nil {
		return err
	}
	robot, err := popNearestRobot(tx, cart.Location)
	if err != nil || robot == nil {
		return err
	}
	bws, err := s.picker.SearchFreeStation(tx, robot.Name, types.PrefixBWS)
	if err != nil {
		return err
	}
	if bws == "" {
		return nil
	}
	station, err := tx.GetStation(bws)
	if err != nil {
		return err
	}
	station.Reservation = job.CartName
	if err := tx.PutStation(station); err != nil {
		return err
	}

	robot.Available = false
	robot.CurrentJobID = job.ID
	if err := tx.PutRobot(robot); err != nil {
		return err
	}

	job.State = types.JobPending
	job.CurrentlyAssigned = true
	job.RobotName = robot.Name
	job.SourceStation = cart.Location
	job.TargetStation = bws
	now := time.Now()
	job.StartedAt = &now
	return tx.PutJob(job)
}

// scheduleRechargeCharger assigns a robot and a free BCS for a
// directly created RECHARGE_CHARGER job.
func (s *Scheduler) scheduleRechargeCharger(tx *planstore.Tx, job *types.Job) error {
	if job.RobotName != "" {
		return nil
	}
	cart, err := tx.GetCart(job.CartName)
	if err != nil {
		return err
	}
	bcs, err := nearestFreeStation(tx, types.PrefixBCS, cart.Location)
	if err != nil {
		return err
	}
	if bcs == "" {
		return nil
	}
	robot, err := popNearestRobot(tx, cart.Location)
	if err != nil || robot == nil {
		return err
	}
	station, err := tx.GetStation(bcs)
	if err != nil {
		return err
	}
	station.Reservation = job.CartName
	if err := tx.PutStation(station); err != nil {
		return err
	}

	robot.Available = false
	robot.CurrentJobID = job.ID
	if err := tx.PutRobot(robot); err != nil {
		return err
	}

	job.State = types.JobPending
	job.CurrentlyAssigned = true
	job.RobotName = robot.Name
	job.SourceStation = cart.Location
	job.TargetStation = bcs
	now := time.Now()
	job.StartedAt = &now
	return tx.PutJob(job)
}

// robotSuffix returns the trailing digits of a robot name, e.g.
// "ChargePal1" -> "1", matching the RBS_<robot-suffix> naming
// convention of spec.md §4.F.
func robotSuffix(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	return name[i:]
}

// scheduleRechargeSelf creates a RECHARGE_SELF job for every available
// robot not already parked at its own dedicated RBS, run once at the
// end of every tick. Unlike the other station types, an RBS is never
// shared across robots, so it is not tracked through
// Station.Reservation: that field holds a cart name, and a robot-only
// job has none.
func (s *Scheduler) scheduleRechargeSelf(tx *planstore.Tx) error {
	robots, err := tx.ListRobots()
	if err != nil {
		return err
	}
	for _, r := range robots {
		if !r.Available {
			continue
		}

		home := string(types.PrefixRBS) + robotSuffix(r.Name)
		if home == r.Location {
			continue
		}
		if _, err := tx.GetStation(home); err != nil {
			s.logger.Warn().Str("robot", r.Name).Str("station", home).Msg("robot has no dedicated RBS, skipping recharge-self")
			continue
		}

		id, err := tx.NextJobID()
		if err != nil {
			return err
		}
		now := time.Now()
		if err := tx.PutJob(&types.Job{
			ID: id, Type: types.JobRechargeSelf, State: types.JobPending,
			Schedule: now, CurrentlyAssigned: true,
			RobotName: r.Name, SourceStation: r.Location, TargetStation: home,
			StartedAt: &now,
		}); err != nil {
			return err
		}

		r.Available = false
		r.CurrentJobID = id
		if err := tx.PutRobot(r); err != nil {
			return err
		}
	}
	return nil
}
