// Package log provides structured logging for the fleet controller using
// zerolog. Init configures the global Logger once at process startup;
// WithComponent/WithRobot/WithJob/WithBooking derive child loggers that
// attach the relevant identifier to every subsequent entry.
package log
