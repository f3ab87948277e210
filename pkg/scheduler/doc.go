/*
Package scheduler implements the rule engine that binds resources to
open jobs (component F): for each job type it picks a cart, a robot,
and/or a station using the nearest-by-Layout-distance rule, and
updates PlanStore accordingly. It never preempts an already-assigned
job, and it is deterministic within one tick — ties are broken by
PlanStore's insertion order, which is stable for the duration of a
single ScheduleTick call.

Per-job-type rules (spec.md §4.F):

  - BRING_CHARGER: skipped if the target station is occupied or no
    cart can deliver the requested charge; otherwise binds the nearest
    capable cart, the nearest robot to that cart, reserves the target
    station, and sets the booking's plug-in state.
  - RETRIEVE_CHARGER: picks the nearest robot to the source station,
    then upgrades the job in place to RECHARGE_CHARGER (a BCS was
    found and reserved) or STOW_CHARGER (falling back to
    StationPicker for a BWS).
  - STOW_CHARGER / RECHARGE_CHARGER: scheduled directly against their
    given cart, picking a robot and a station as above.
  - RECHARGE_SELF: synthesized at the end of every tick for each idle
    robot not already at its own RBS.
*/
package scheduler
