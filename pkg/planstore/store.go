package planstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/chargepal/fleetctl/pkg/layout"
	"github.com/chargepal/fleetctl/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketRobots    = []byte("robots")
	bucketCarts     = []byte("carts")
	bucketStations  = []byte("stations")
	bucketDistances = []byte("distances")
	bucketJobs      = []byte("jobs")
	bucketBookings  = []byte("bookings")
)

// Store is the bbolt-backed PlanStore. Schema: one bucket per entity,
// values JSON-encoded, keyed by name (robots/carts/stations), by a
// monotonically assigned id (jobs) or by the LiveStore charging-session
// id (bookings). Distances are keyed by "start\x00target".
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the PlanStore database file under
// dataDir.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "planstore.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open planstore: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketRobots, bucketCarts, bucketStations, bucketDistances, bucketJobs, bucketBookings} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SeedStations populates the stations bucket at startup. Existing
// stations are left untouched; stations are fixed at startup per the
// data model.
func (s *Store) SeedStations(stations []types.Station) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStations)
		for _, st := range stations {
			if b.Get([]byte(st.Name)) != nil {
				continue
			}
			data, err := json.Marshal(st)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(st.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedDistances materializes the distance relation from l for every
// pair of known stations. Called once at startup; never mutated
// afterward.
func (s *Store) SeedDistances(l *layout.Layout) error {
	names := l.Stations()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDistances)
		for _, a := range names {
			for _, t := range names {
				d := types.Distance{Start: a, Target: t, Distance: l.Distance(a, t)}
				data, err := json.Marshal(d)
				if err != nil {
					return err
				}
				if err := b.Put(distanceKey(a, t), data); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func distanceKey(a, b string) []byte {
	return []byte(a + "\x00" + b)
}

func jobKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func bookingKey(id int64) []byte {
	return jobKey(id)
}

// Tx is a handle for one tick's worth of PlanStore mutation. Scheduler,
// JobStateMachine and Reconciler all operate against the same Tx within
// one tick so their writes land in one logical transaction.
type Tx struct {
	tx *bolt.Tx
}

// Begin starts a new read-write transaction. Callers MUST call Commit
// or Rollback exactly once.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// View runs fn against a read-only snapshot. RPC handlers that only
// read planner state (AskFreeStation, OperationTime) use this instead
// of RequestQueue, per the concurrency model's "reads are
// snapshot-tolerant" allowance (spec §5) — their view may lag the tick
// loop by up to one in-flight transaction.
func (s *Store) View(fn func(*Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// Commit commits the transaction. Per the commit-on-exception policy
// (invariant violations are logged and the process is terminated for
// external supervision, but partial progress within the tick is kept),
// callers recovering from a panic during a tick should still call
// Commit before re-raising.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction. The tick loop never calls it; the
// plug-in handshake handler in pkg/api does when the handshake returns
// an error.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// --- Robots ---

func (t *Tx) PutRobot(r *types.Robot) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketRobots).Put([]byte(r.Name), data)
}

func (t *Tx) GetRobot(name string) (*types.Robot, error) {
	data := t.tx.Bucket(bucketRobots).Get([]byte(name))
	if data == nil {
		return nil, fmt.Errorf("robot not found: %s", name)
	}
	var r types.Robot
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *Tx) ListRobots() ([]*types.Robot, error) {
	var out []*types.Robot
	err := t.tx.Bucket(bucketRobots).ForEach(func(_, v []byte) error {
		var r types.Robot
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		out = append(out, &r)
		return nil
	})
	return out, err
}

// --- Carts ---

func (t *Tx) PutCart(c *types.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketCarts).Put([]byte(c.Name), data)
}

func (t *Tx) GetCart(name string) (*types.Cart, error) {
	data := t.tx.Bucket(bucketCarts).Get([]byte(name))
	if data == nil {
		return nil, fmt.Errorf("cart not found: %s", name)
	}
	var c types.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *Tx) ListCarts() ([]*types.Cart, error) {
	var out []*types.Cart
	err := t.tx.Bucket(bucketCarts).ForEach(func(_, v []byte) error {
		var c types.Cart
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		out = append(out, &c)
		return nil
	})
	return out, err
}

// --- Stations ---

func (t *Tx) PutStation(st *types.Station) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketStations).Put([]byte(st.Name), data)
}

func (t *Tx) GetStation(name string) (*types.Station, error) {
	data := t.tx.Bucket(bucketStations).Get([]byte(name))
	if data == nil {
		return nil, fmt.Errorf("station not found: %s", name)
	}
	var st types.Station
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (t *Tx) ListStations() ([]*types.Station, error) {
	var out []*types.Station
	err := t.tx.Bucket(bucketStations).ForEach(func(_, v []byte) error {
		var st types.Station
		if err := json.Unmarshal(v, &st); err != nil {
			return err
		}
		out = append(out, &st)
		return nil
	})
	return out, err
}

func (t *Tx) ListStationsByPrefix(prefix types.StationPrefix) ([]*types.Station, error) {
	all, err := t.ListStations()
	if err != nil {
		return nil, err
	}
	var out []*types.Station
	for _, st := range all {
		if st.Prefix == prefix {
			out = append(out, st)
		}
	}
	return out, nil
}

// --- Distances ---

// Distance returns the materialized distance between a and b, or
// layout.MaxDistance if the pair was never seeded.
func (t *Tx) Distance(a, b string) float64 {
	data := t.tx.Bucket(bucketDistances).Get(distanceKey(a, b))
	if data == nil {
		return layout.MaxDistance
	}
	var d types.Distance
	if err := json.Unmarshal(data, &d); err != nil {
		return layout.MaxDistance
	}
	return d.Distance
}

// --- Jobs ---

// NextJobID assigns the next monotonic job id.
func (t *Tx) NextJobID() (int64, error) {
	id, err := t.tx.Bucket(bucketJobs).NextSequence()
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}

func (t *Tx) PutJob(j *types.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketJobs).Put(jobKey(j.ID), data)
}

func (t *Tx) GetJob(id int64) (*types.Job, error) {
	data := t.tx.Bucket(bucketJobs).Get(jobKey(id))
	if data == nil {
		return nil, fmt.Errorf("job not found: %d", id)
	}
	var j types.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns every job in insertion order (ids are monotonically
// assigned and keyed big-endian, so bucket iteration order is
// insertion order).
func (t *Tx) ListJobs() ([]*types.Job, error) {
	var out []*types.Job
	err := t.tx.Bucket(bucketJobs).ForEach(func(_, v []byte) error {
		var j types.Job
		if err := json.Unmarshal(v, &j); err != nil {
			return err
		}
		out = append(out, &j)
		return nil
	})
	return out, err
}

// ListJobsByState returns jobs in insertion order filtered to the given
// states.
func (t *Tx) ListJobsByState(states ...types.JobState) ([]*types.Job, error) {
	want := make(map[types.JobState]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	all, err := t.ListJobs()
	if err != nil {
		return nil, err
	}
	var out []*types.Job
	for _, j := range all {
		if want[j.State] {
			out = append(out, j)
		}
	}
	return out, nil
}

// ListJobsByBooking returns every job referencing bookingID, in
// insertion order.
func (t *Tx) ListJobsByBooking(bookingID int64) ([]*types.Job, error) {
	all, err := t.ListJobs()
	if err != nil {
		return nil, err
	}
	var out []*types.Job
	for _, j := range all {
		if j.BookingID == bookingID {
			out = append(out, j)
		}
	}
	return out, nil
}

// --- Bookings ---

func (t *Tx) PutBooking(b *types.Booking) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketBookings).Put(bookingKey(b.ID), data)
}

func (t *Tx) GetBooking(id int64) (*types.Booking, error) {
	data := t.tx.Bucket(bucketBookings).Get(bookingKey(id))
	if data == nil {
		return nil, fmt.Errorf("booking not found: %d", id)
	}
	var b types.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *Tx) ListBookings() ([]*types.Booking, error) {
	var out []*types.Booking
	err := t.tx.Bucket(bucketBookings).ForEach(func(_, v []byte) error {
		var b types.Booking
		if err := json.Unmarshal(v, &b); err != nil {
			return err
		}
		out = append(out, &b)
		return nil
	})
	return out, err
}
