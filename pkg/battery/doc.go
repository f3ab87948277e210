// Package battery implements BatteryMonitor (component I): it polls
// LiveStore for battery-state changes since its last watermark and
// maps the changed state text to a ChargerCommand for JobStateMachine.
package battery
