package metrics

import (
	"time"

	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/requestqueue"
)

// Collector periodically samples PlanStore and RequestQueue state into
// the gauge metrics defined in metrics.go. It runs independently of the tick loop so a
// stalled tick still shows up as stale gauges rather than a crash.
type Collector struct {
	store  *planstore.Store
	queue  *requestqueue.Queue
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(store *planstore.Store, queue *requestqueue.Queue) *Collector {
	return &Collector{
		store:  store,
		queue:  queue,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.queue != nil {
		RequestQueueDepth.Set(float64(c.queue.Len()))
	}
	if c.store == nil {
		return
	}
	_ = c.store.View(func(tx *planstore.Tx) error {
		c.collectRobots(tx)
		c.collectCarts(tx)
		c.collectJobs(tx)
		return nil
	})
}

func (c *Collector) collectRobots(tx *planstore.Tx) {
	robots, err := tx.ListRobots()
	if err != nil {
		return
	}

	counts := map[bool]int{true: 0, false: 0}
	for _, r := range robots {
		counts[r.Available]++
	}
	RobotsTotal.WithLabelValues("true").Set(float64(counts[true]))
	RobotsTotal.WithLabelValues("false").Set(float64(counts[false]))
}

func (c *Collector) collectCarts(tx *planstore.Tx) {
	carts, err := tx.ListCarts()
	if err != nil {
		return
	}

	counts := map[bool]int{true: 0, false: 0}
	for _, ct := range carts {
		counts[ct.Available]++
	}
	CartsTotal.WithLabelValues("true").Set(float64(counts[true]))
	CartsTotal.WithLabelValues("false").Set(float64(counts[false]))
}

func (c *Collector) collectJobs(tx *planstore.Tx) {
	jobs, err := tx.ListJobs()
	if err != nil {
		return
	}

	type key struct {
		jobType string
		state   string
	}
	counts := make(map[key]int)
	for _, j := range jobs {
		counts[key{string(j.Type), string(j.State)}]++
	}
	for k, n := range counts {
		JobsTotal.WithLabelValues(k.jobType, k.state).Set(float64(n))
	}
}
