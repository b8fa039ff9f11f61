// Package inventory keeps a local, revisioned record of the instances
// opsfab has seen. Every refresh is a new revision, so "what was
// running last Tuesday" stays answerable after instances churn.
package inventory

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/opsfab/opsfab/types"
)

// Bucket names in bbolt
var (
	bucketObservations = []byte("observations")
	bucketLatest       = []byte("latest")
	bucketMeta         = []byte("meta")
)

var keyRevision = []byte("current_revision")

// Store is the revisioned instance inventory
type Store struct {
	mu sync.RWMutex

	// In-memory index for fast lookups
	index *btree.BTreeG[*InstanceState]

	// On-disk storage
	db *bbolt.DB

	// Current revision number
	currentRev int64
}

// InstanceState tracks an instance in the index
type InstanceState struct {
	ID           string
	Name         string
	State        string
	FirstSeenRev int64
	LastSeenRev  int64
	GoneRev      int64
	Live         bool
}

// Open creates or opens the inventory database in dir
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "opsfab.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketObservations, bucketLatest, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{
		index: btree.NewG[*InstanceState](32, func(a, b *InstanceState) bool {
			return a.ID < b.ID
		}),
		db: db,
	}

	if err := store.load(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBatch records a complete view of instances as a new revision.
// Instances that were live in the index but are absent from the batch
// are marked gone.
func (s *Store) RecordBatch(instances []types.Instance) (int64, error) {
	return s.record(instances, true)
}

// RecordPartial records a filtered or otherwise incomplete view as a
// new revision. Indexed instances absent from the batch keep their
// liveness: a partial view proves nothing about what it omits.
func (s *Store) RecordPartial(instances []types.Instance) (int64, error) {
	return s.record(instances, false)
}

func (s *Store) record(instances []types.Instance, complete bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRev++
	rev := s.currentRev

	seen := make(map[string]bool, len(instances))
	for _, instance := range instances {
		seen[instance.ID] = true
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		observations := tx.Bucket(bucketObservations)
		latest := tx.Bucket(bucketLatest)

		for _, instance := range instances {
			value, err := json.Marshal(instance)
			if err != nil {
				return err
			}
			if err := observations.Put(makeObservationKey(rev, instance.ID), value); err != nil {
				return err
			}
			if err := latest.Put([]byte(instance.ID), value); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		return meta.Put(keyRevision, int64ToBytes(rev))
	})
	if err != nil {
		return 0, err
	}

	for _, instance := range instances {
		s.updateIndex(instance, rev)
	}
	if complete {
		s.markGone(seen, rev)
	}

	return rev, nil
}

// Get returns the latest recorded state of an instance
func (s *Store) Get(id string) (*types.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var instance *types.Instance
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLatest).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("instance %s not found", id)
		}
		instance = &types.Instance{}
		return json.Unmarshal(data, instance)
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ListLive returns the index entries still considered live, ordered by
// instance id
func (s *Store) ListLive() []*InstanceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var live []*InstanceState
	s.index.Ascend(func(state *InstanceState) bool {
		if state.Live {
			live = append(live, state)
		}
		return true
	})
	return live
}

// StateOf returns the index entry for an instance
func (s *Store) StateOf(id string) (*InstanceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, found := s.index.Get(&InstanceState{ID: id})
	if !found {
		return nil, fmt.Errorf("instance %s not found", id)
	}
	return existing, nil
}

// LastRevision returns the current revision number
func (s *Store) LastRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Compact drops observation rows older than keepRevisions back
func (s *Store) Compact(keepRevisions int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.currentRev - keepRevisions
	if cutoff <= 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketObservations)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			rev, _ := parseObservationKey(k)
			if rev < cutoff {
				toDelete = append(toDelete, k)
			}
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) updateIndex(instance types.Instance, rev int64) {
	existing, found := s.index.Get(&InstanceState{ID: instance.ID})
	if !found {
		existing = &InstanceState{
			ID:           instance.ID,
			FirstSeenRev: rev,
		}
	}

	existing.Name = instance.Name()
	existing.State = instance.State
	existing.LastSeenRev = rev
	existing.Live = instance.IsLive()
	if existing.Live {
		// an instance seen live again is not gone anymore
		existing.GoneRev = 0
	} else if existing.GoneRev == 0 {
		existing.GoneRev = rev
	}

	s.index.ReplaceOrInsert(existing)
}

func (s *Store) markGone(seen map[string]bool, rev int64) {
	var gone []*InstanceState
	s.index.Ascend(func(state *InstanceState) bool {
		if state.Live && !seen[state.ID] {
			gone = append(gone, state)
		}
		return true
	})

	for _, state := range gone {
		state.Live = false
		state.GoneRev = rev
		s.index.ReplaceOrInsert(state)
	}
}

// load restores the revision counter and rebuilds the index from the
// latest bucket
func (s *Store) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyRevision); data != nil {
			s.currentRev = bytesToInt64(data)
		}

		return tx.Bucket(bucketLatest).ForEach(func(k, v []byte) error {
			var instance types.Instance
			if err := json.Unmarshal(v, &instance); err != nil {
				return fmt.Errorf("failed to decode instance %s: %w", k, err)
			}
			s.updateIndex(instance, s.currentRev)
			return nil
		})
	})
}

func makeObservationKey(rev int64, id string) []byte {
	return []byte(fmt.Sprintf("%016d:%s", rev, id))
}

func parseObservationKey(key []byte) (int64, string) {
	var rev int64
	var id string
	fmt.Sscanf(string(key), "%016d:%s", &rev, &id)
	return rev, id
}

func int64ToBytes(n int64) []byte {
	return []byte(fmt.Sprintf("%d", n))
}

func bytesToInt64(b []byte) int64 {
	var n int64
	fmt.Sscanf(string(b), "%d", &n)
	return n
}
