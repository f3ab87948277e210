package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chargepal/fleetctl/pkg/battery"
	"github.com/chargepal/fleetctl/pkg/events"
	"github.com/chargepal/fleetctl/pkg/jobfsm"
	"github.com/chargepal/fleetctl/pkg/livestore"
	"github.com/chargepal/fleetctl/pkg/log"
	"github.com/chargepal/fleetctl/pkg/metrics"
	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/reconciler"
	"github.com/chargepal/fleetctl/pkg/requestqueue"
	"github.com/chargepal/fleetctl/pkg/scheduler"
	"github.com/chargepal/fleetctl/pkg/stationpicker"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the controller's tunables; cmd/chargepalctl fills them
// from the process YAML configuration.
type Config struct {
	// TickInterval is the sleep between planner ticks. Default 1s.
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	return c
}

// Controller owns the tick loop and every planner-side component.
// Its methods are the only sanctioned way for the RPC façade to touch
// planner state: direct reads go through PlanStore()'s snapshot View,
// job mutations go through Enqueue, and the plug-in handshake runs in
// its own PlanStore transaction.
type Controller struct {
	cfg Config

	plan *planstore.Store
	live *livestore.Store

	reconciler *reconciler.Reconciler
	scheduler  *scheduler.Scheduler
	fsm        *jobfsm.FSM
	battery    *battery.Monitor
	picker     *stationpicker.Picker
	queue      *requestqueue.Queue
	broker     *events.Broker

	logger zerolog.Logger

	mu     sync.Mutex
	active bool
	stopCh chan struct{}
	doneCh chan struct{}
}

// New wires a Controller from an already-open PlanStore and LiveStore.
func New(cfg Config, plan *planstore.Store, live *livestore.Store) *Controller {
	picker := stationpicker.New()
	return &Controller{
		cfg:        cfg.withDefaults(),
		plan:       plan,
		live:       live,
		reconciler: reconciler.New(live),
		scheduler:  scheduler.New(picker),
		fsm:        jobfsm.New(live),
		battery:    battery.New(),
		picker:     picker,
		queue:      requestqueue.New(),
		broker:     events.NewBroker(),
		logger:     log.WithComponent("controller"),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// PlanStore exposes the underlying store for snapshot reads.
func (c *Controller) PlanStore() *planstore.Store { return c.plan }

// LiveStore exposes the underlying LiveStore connection.
func (c *Controller) LiveStore() *livestore.Store { return c.live }

// Picker exposes the StationPicker for RPC handlers that read or
// reset blocker sets, which are in-memory and not transactional.
func (c *Controller) Picker() *stationpicker.Picker { return c.picker }

// FSM exposes the job/booking state machine for RPC handlers to
// invoke from within an enqueued callback.
func (c *Controller) FSM() *jobfsm.FSM { return c.fsm }

// Events exposes the event broker for the RPC façade's websocket feed.
func (c *Controller) Events() *events.Broker { return c.broker }

// Enqueue schedules cb to run against the next tick's transaction.
// RPC handlers use it for job mutations; only the plug-in handshake
// writes PlanStore through a transaction of its own.
func (c *Controller) Enqueue(cb requestqueue.Callback) { c.queue.Enqueue(cb) }

// Run starts the event broker and the tick loop, blocking until ctx
// is canceled or Stop is called. Process shutdown sets active false;
// the loop exits at its next sleep boundary and the in-flight
// transaction still commits.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return fmt.Errorf("controller already running")
	}
	c.active = true
	c.mu.Unlock()

	c.broker.Start()
	defer c.broker.Stop()
	defer close(c.doneCh)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		c.tick()

		select {
		case <-ticker.C:
		case <-c.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop requests the loop exit at its next sleep boundary and blocks
// until it has.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.mu.Unlock()

	close(c.stopCh)
	<-c.doneCh
}

func (c *Controller) tick() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.TickDuration)
		metrics.TicksTotal.Inc()
	}()
	var tx *planstore.Tx
	defer func() {
		if r := recover(); r != nil {
			metrics.TickPanicsTotal.Inc()
			c.logger.Error().Interface("panic", r).Msg("tick panicked, recovering")
			if tx != nil {
				if err := tx.Commit(); err != nil {
					c.logger.Error().Err(err).Msg("failed to commit tick transaction after panic")
				}
			}
		}
	}()

	var err error
	tx, err = c.plan.Begin()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to begin planstore transaction")
		return
	}

	before, err := snapshotJobStates(tx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("job snapshot failed, job lifecycle events skipped this tick")
	}

	if err := c.reconcileStep(tx); err != nil {
		c.logger.Error().Err(err).Msg("reconcile step failed")
	}

	if err := c.batteryStep(tx); err != nil {
		c.logger.Error().Err(err).Msg("battery monitor step failed")
	}

	if err := c.scheduleStep(tx); err != nil {
		c.logger.Error().Err(err).Msg("schedule step failed")
	}

	if err := c.queue.Drain(tx); err != nil {
		c.logger.Error().Err(err).Msg("request queue drain failed")
	}

	if err := c.publishJobEvents(tx, before); err != nil {
		c.logger.Warn().Err(err).Msg("job lifecycle event publish failed")
	}

	// On uncaught failure the transaction is still committed to
	// preserve partial progress; the error is logged, not swallowed.
	if err := tx.Commit(); err != nil {
		c.logger.Error().Err(err).Msg("failed to commit tick transaction")
	}
}

// snapshotJobStates captures every job's state at the start of a tick
// so publishJobEvents can tell which jobs are new and which transitioned.
func snapshotJobStates(tx *planstore.Tx) (map[int64]types.JobState, error) {
	jobs, err := tx.ListJobs()
	if err != nil {
		return nil, err
	}
	states := make(map[int64]types.JobState, len(jobs))
	for _, j := range jobs {
		states[j.ID] = j.State
	}
	return states, nil
}

// publishJobEvents diffs the current job states against before and
// publishes the matching lifecycle event for each job whose state is
// new or has changed this tick.
func (c *Controller) publishJobEvents(tx *planstore.Tx, before map[int64]types.JobState) error {
	if before == nil {
		return nil
	}
	jobs, err := tx.ListJobs()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		prior, existed := before[j.ID]
		if existed && prior == j.State {
			continue
		}

		var typ events.EventType
		switch {
		case !existed:
			typ = events.EventJobCreated
		case j.State == types.JobPending:
			typ = events.EventJobAssigned
		case j.State == types.JobComplete:
			typ = events.EventJobCompleted
		case j.State == types.JobFailed:
			typ = events.EventJobFailed
		case j.State == types.JobCanceled:
			typ = events.EventJobCanceled
		default:
			continue
		}

		c.broker.Publish(&events.Event{
			ID:      uuid.NewString(),
			Type:    typ,
			Message: fmt.Sprintf("job %d (%s) -> %s", j.ID, j.Type, j.State),
		})
	}
	return nil
}

func (c *Controller) reconcileStep(tx *planstore.Tx) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	if err := c.reconciler.SyncRobots(tx); err != nil {
		c.logger.Warn().Err(err).Msg("robot sync failed")
	}
	if err := c.reconciler.SyncCarts(tx); err != nil {
		c.logger.Warn().Err(err).Msg("cart sync failed")
	}

	changed, err := c.reconciler.DiffBookings(tx)
	if err != nil {
		return fmt.Errorf("diff bookings: %w", err)
	}
	metrics.BookingsChangedTotal.Add(float64(len(changed)))

	for _, b := range changed {
		if err := c.fsm.HandleBookingChange(tx, b); err != nil {
			c.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("booking dispatch failed")
			continue
		}
		c.broker.Publish(&events.Event{
			ID:      uuid.NewString(),
			Type:    events.EventBookingChanged,
			Message: fmt.Sprintf("booking %d -> %s", b.ID, b.Status),
		})
	}
	return nil
}

func (c *Controller) batteryStep(tx *planstore.Tx) error {
	deltas, err := c.battery.Poll(c.live)
	if err != nil {
		return fmt.Errorf("poll battery messages: %w", err)
	}

	for _, d := range deltas {
		if !d.HasCommand {
			continue
		}
		if err := c.fsm.HandleChargerCommand(tx, d.Cart, d.Command); err != nil {
			c.logger.Error().Err(err).Str("cart", d.Cart).Msg("charger command dispatch failed")
			continue
		}
		c.broker.Publish(&events.Event{
			ID:      uuid.NewString(),
			Type:    events.EventChargerCommand,
			Message: fmt.Sprintf("%s -> %s", d.Cart, d.Command),
		})
	}
	return nil
}

func (c *Controller) scheduleStep(tx *planstore.Tx) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingDuration)
	return c.scheduler.ScheduleTick(tx)
}
