// Package worldstore persists a ring of recent WorldState snapshots for
// diagnostics and replay. It is an optional component: a default
// MemoryStore keeps the ring in RAM, and an OPTIONAL badger-backed
// DiskStore persists it across restarts with per-key TTL.
//
// DiskStore is grounded on the teacher's pkg/storage/badger.go, reusing
// its options-struct construction style and default tuning knobs, scoped
// down from a full graph engine to a single-prefix snapshot ring. Note
// that FloorPlanStore (the static map) is a separate external
// collaborator (pkg/floorplan.Store); this package only persists the
// dynamic WorldState history.
package worldstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/closedform/senseye/pkg/world"
)

// Store is the contract for WorldState history persistence.
type Store interface {
	Put(ts time.Time, ws *world.WorldState) error
	Latest() (*world.WorldState, bool, error)
	Since(horizon time.Time) ([]*world.WorldState, error)
	Close() error
}

// MemoryStore is a fixed-capacity in-memory ring, the default Store when
// no disk backing is configured.
type MemoryStore struct {
	capacity int
	ring     []*world.WorldState
}

// NewMemoryStore returns a Store that keeps the most recent capacity
// snapshots.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStore{capacity: capacity}
}

// Put appends a snapshot, evicting the oldest once capacity is exceeded.
func (m *MemoryStore) Put(_ time.Time, ws *world.WorldState) error {
	m.ring = append(m.ring, ws)
	if len(m.ring) > m.capacity {
		m.ring = m.ring[len(m.ring)-m.capacity:]
	}
	return nil
}

// Latest returns the most recently stored snapshot.
func (m *MemoryStore) Latest() (*world.WorldState, bool, error) {
	if len(m.ring) == 0 {
		return nil, false, nil
	}
	return m.ring[len(m.ring)-1], true, nil
}

// Since returns every retained snapshot generated at or after horizon.
func (m *MemoryStore) Since(horizon time.Time) ([]*world.WorldState, error) {
	var out []*world.WorldState
	for _, ws := range m.ring {
		if !ws.GeneratedAt.Before(horizon) {
			out = append(out, ws)
		}
	}
	return out, nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }

const snapshotKeyPrefix = "ws:"

// DiskOptions configures the badger-backed DiskStore.
type DiskOptions struct {
	// DataDir is the directory badger stores its files under. Required.
	DataDir string

	// InMemory runs badger without touching disk, useful for tests.
	InMemory bool

	// TTL is how long a snapshot key survives before badger reclaims it
	// during compaction. Zero disables expiry.
	TTL time.Duration
}

// DiskStore persists WorldState snapshots in badger, keyed by the UTC
// cycle timestamp in RFC 3339 form with a fixed nine fractional digits, so
// key order is time order and Since() can range-scan by key order.
type DiskStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewDiskStore opens (or creates) the badger database at opts.DataDir.
func NewDiskStore(opts DiskOptions) (*DiskStore, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("worldstore: opening badger: %w", err)
	}
	return &DiskStore{db: db, ttl: opts.TTL}, nil
}

func snapshotKey(ts time.Time) []byte {
	return []byte(snapshotKeyPrefix + ts.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
}

// Put stores ws under a key derived from ts, applying the configured TTL.
func (d *DiskStore) Put(ts time.Time, ws *world.WorldState) error {
	payload, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("worldstore: encoding snapshot: %w", err)
	}
	return d.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(snapshotKey(ts), payload)
		if d.ttl > 0 {
			entry = entry.WithTTL(d.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Latest returns the most recently written, unexpired snapshot.
func (d *DiskStore) Latest() (*world.WorldState, bool, error) {
	var out *world.WorldState
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(snapshotKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(snapshotKeyPrefix), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix([]byte(snapshotKeyPrefix)) {
			return nil
		}
		item := it.Item()
		return item.Value(func(val []byte) error {
			var ws world.WorldState
			if err := json.Unmarshal(val, &ws); err != nil {
				return fmt.Errorf("worldstore: decoding snapshot: %w", err)
			}
			out = &ws
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Since returns every retained, unexpired snapshot generated at or after
// horizon.
func (d *DiskStore) Since(horizon time.Time) ([]*world.WorldState, error) {
	var out []*world.WorldState
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(snapshotKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		start := snapshotKey(horizon)
		for it.Seek(start); it.ValidForPrefix([]byte(snapshotKeyPrefix)); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var ws world.WorldState
				if err := json.Unmarshal(val, &ws); err != nil {
					return fmt.Errorf("worldstore: decoding snapshot: %w", err)
				}
				out = append(out, &ws)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Close releases the underlying badger database handle.
func (d *DiskStore) Close() error {
	return d.db.Close()
}
