// Package jobfsm implements the job and booking lifecycle (component
// G): the transition diagrams from OPEN through COMPLETE/FAILED/
// CANCELED, the booking-status side effects that create and cancel
// jobs, the charger-command handlers, and the plug-in handshake. Every
// method takes the caller's *planstore.Tx so its writes land in the
// same one-transaction-per-tick boundary as Scheduler and Reconciler.
package jobfsm
