package types

import "time"

// Robot is a mobile unit that transports carts between stations.
type Robot struct {
	Name              string
	Location          string // station name
	CurrentJobID      int64  // 0 when idle
	OngoingAction     string
	PreviousAction    string
	Cart              string // cart name currently carried, "" when none
	ChargePercent     float64
	Available         bool
	ErrorCount        int
	UpdatedAt         time.Time
}

// Cart is a mobile battery pack a Robot can carry between stations.
type Cart struct {
	Name             string
	Location         string
	BookingID        int64 // 0 when unbound
	Plugged          bool
	ActionState      string
	ModeResponse     string
	StateOfCharge    float64
	StatusFlag       string
	ChargerOK        bool
	ChargerState     string
	ChargerError     string
	BalancingRequest bool
	ChargePercent    float64
	Available        bool
	ErrorCount       int
	UpdatedAt        time.Time
}

// StationPrefix identifies the role a Station plays.
type StationPrefix string

const (
	PrefixADS StationPrefix = "ADS_" // adapter station (vehicle dock)
	PrefixBCS StationPrefix = "BCS_" // battery charging station
	PrefixBWS StationPrefix = "BWS_" // battery waiting station
	PrefixRBS StationPrefix = "RBS_" // robot base station
)

// Station is a fixed point in the layout that a Cart or Robot may occupy.
type Station struct {
	Name        string
	Prefix      StationPrefix
	Pose        string
	Reservation string // cart name holding an exclusive reservation, "" when free
	Available   bool
}

// Distance is one row of the materialized station-to-station distance relation.
type Distance struct {
	Start    string
	Target   string
	Distance float64
}

// JobType enumerates the kind of transport a Job represents.
type JobType string

const (
	JobBringCharger     JobType = "BRING_CHARGER"
	JobRetrieveCharger  JobType = "RETRIEVE_CHARGER"
	JobRechargeCharger  JobType = "RECHARGE_CHARGER"
	JobStowCharger      JobType = "STOW_CHARGER"
	JobRechargeSelf     JobType = "RECHARGE_SELF"
)

// JobState enumerates the Job lifecycle.
type JobState string

const (
	JobOpen     JobState = "OPEN"
	JobPending  JobState = "PENDING"
	JobOngoing  JobState = "ONGOING"
	JobComplete JobState = "COMPLETE"
	JobFailed   JobState = "FAILED"
	JobCanceled JobState = "CANCELED"
)

// PlugInState is the four-step handshake separating charger delivery from
// the vehicle and cart actually exchanging power.
type PlugInState string

const (
	PlugInNone           PlugInState = ""
	PlugInBringCharger   PlugInState = "BRING_CHARGER"
	PlugInRobotReady     PlugInState = "ROBOT_READY2PLUG"
	PlugInBEVPending     PlugInState = "BEV_PENDING"
	PlugInPlugged        PlugInState = "PLUG_IN"
	PlugInSuccess        PlugInState = "SUCCESS"
)

// Job is one unit of scheduled transport work.
type Job struct {
	ID                int64
	Type              JobType
	State             JobState
	Schedule          time.Time
	Deadline          *time.Time
	BookingID         int64 // 0 when unbound
	CurrentlyAssigned bool
	RobotName         string
	CartName          string
	SourceStation     string
	TargetStation     string
	ChargingType      string
	PortLocation      string
	StartedAt         *time.Time
	EndedAt           *time.Time
}

// BookingStatus is the charging-session status as reported by LiveStore.
type BookingStatus string

const (
	BookingBooked     BookingStatus = "booked"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingPending    BookingStatus = "pending"
	BookingChargingBEV BookingStatus = "charging_BEV"
	BookingReady      BookingStatus = "ready"
	BookingCanceled   BookingStatus = "canceled"
	BookingNoShow     BookingStatus = "no_show"
)

// Booking is the PlanStore snapshot of a customer charging session.
type Booking struct {
	ID               int64
	Status           BookingStatus
	PlugInState      PlugInState
	LastChange       time.Time
	DropLocation     string
	PlannedDropTime  time.Time
	PlannedPickup    time.Time
	ActualDropTime   *time.Time
	ActualPickup     *time.Time
	PlugDuration      time.Duration
	TargetSOC        float64
	DropSOC          float64
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// ChargeRequest is the charge delta derived from a Booking (target - drop).
func (b Booking) ChargeRequest() float64 {
	return b.TargetSOC - b.DropSOC
}

// ChargerCommand is the charger-state transition vocabulary emitted by
// BatteryMonitor and consumed by JobStateMachine.
type ChargerCommand string

const (
	ChargerStartCharging    ChargerCommand = "START_CHARGING"
	ChargerStartRecharging  ChargerCommand = "START_RECHARGING"
	ChargerStopRecharging   ChargerCommand = "STOP_RECHARGING"
	ChargerRetrieve         ChargerCommand = "RETRIEVE_CHARGER"
	ChargerBookingFulfilled ChargerCommand = "BOOKING_FULFILLED"
)

// RobotJobStatus is the status string a robot reports back over
// UpdateJobMonitor.
type RobotJobStatus string

const (
	RobotJobSuccess  RobotJobStatus = "Success"
	RobotJobFailure  RobotJobStatus = "Failure"
	RobotJobRecovery RobotJobStatus = "Recovery"
	RobotJobOngoing  RobotJobStatus = "Ongoing"
)
