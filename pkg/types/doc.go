/*
Package types defines the data structures shared across the ChargePal
fleet controller: robots, carts, stations, the distance relation, jobs,
and bookings. These are plain structs with typed string enums, used by
PlanStore for persistence, by Scheduler and JobStateMachine for rule
evaluation, and by the RPC façade for request/response composition.

# Entities

  - Robot: a mobile unit, identified by name, with a current location,
    an optional assigned job, the cart it carries (if any), and a
    self-charge level.
  - Cart: a mobile battery pack, with location, an optional bound
    booking, plug/charger sub-state, and charge level.
  - Station: a fixed point in the layout. The Prefix field
    (ADS_/BCS_/BWS_/RBS_) determines its role.
  - Distance: one row of the materialized station-to-station distance
    table, populated once at startup from pkg/layout.
  - Job: one unit of scheduled transport, typed by JobType and tracked
    through JobState.
  - Booking: the PlanStore snapshot of a customer charging session,
    tracked through BookingStatus and PlugInState.

# Enumeration pattern

Enums are typed string constants, never raw strings compared
case-insensitively:

	type JobState string
	const (
		JobOpen    JobState = "OPEN"
		JobPending JobState = "PENDING"
	)

# Thread safety

Values in this package carry no synchronization of their own — callers
(PlanStore) are responsible for guarding concurrent access.
*/
package types
