package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/util"
)

// Store provides pebble-backed persistence for balances, orders and trades.
// All mutations go through a Tx; plain Store methods only ever observe
// committed state.
type Store struct {
	db    *pebble.DB
	clock util.Clock

	// lastOrderID is recovered from the order keyspace at open time and
	// bumped on every insert. Allocation is atomic so concurrent
	// per-symbol transactions never hand out the same id.
	lastOrderID atomic.Uint64
}

// Open opens (or creates) the pebble database at dbPath.
func Open(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
		MaxOpenFiles: 1000,
		BytesPerSync: 512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	s := &Store{db: db, clock: util.RealClock{}}
	if err := s.recoverLastOrderID(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the wall clock. Tests use this for deterministic
// created_at ordering.
func (s *Store) SetClock(c util.Clock) { s.clock = c }

// recoverLastOrderID scans to the end of the order keyspace so id
// allocation resumes where the previous process stopped.
func (s *Store) recoverLastOrderID() error {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to scan orders: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return nil
	}
	raw := strings.TrimPrefix(string(iter.Key()), prefixOrder)
	id, err := strconv.ParseUint(strings.TrimLeft(raw, "0"), 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt order key %q: %w", iter.Key(), err)
	}
	s.lastOrderID.Store(id)
	return nil
}

// Tx is one matcher transaction. Writes are staged in a pebble indexed
// batch: reads inside the Tx observe staged writes, Commit applies
// everything atomically, Discard throws it all away. Readers outside the
// Tx never see in-progress state.
type Tx struct {
	s *Store
	b *pebble.Batch
}

// Begin starts a transaction. The caller must serialize transactions that
// touch the same symbol; the matching engine does this with a per-symbol
// mutex.
func (s *Store) Begin() *Tx {
	return &Tx{s: s, b: s.db.NewIndexedBatch()}
}

// Commit atomically applies the transaction.
func (tx *Tx) Commit() error {
	return tx.b.Commit(pebble.Sync)
}

// Discard abandons the transaction. Safe to call after Commit.
func (tx *Tx) Discard() {
	_ = tx.b.Close()
}

// getJSON loads and decodes one record. Found is false for missing keys.
func getJSON(r pebble.Reader, key []byte, out any) (bool, error) {
	data, closer, err := r.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func setJSON(w pebble.Writer, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	if err := w.Set(key, data, nil); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// scanJSON walks a prefix forward, decoding every value into T.
func scanJSON[T any](r pebble.Reader, prefix []byte, reverse bool) ([]T, error) {
	iter, err := r.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", prefix, err)
	}
	defer iter.Close()

	var out []T
	decode := func() error {
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return fmt.Errorf("corrupt record at %q: %w", iter.Key(), err)
		}
		out = append(out, v)
		return nil
	}

	if reverse {
		for ok := iter.Last(); ok; ok = iter.Prev() {
			if err := decode(); err != nil {
				return nil, err
			}
		}
	} else {
		for ok := iter.First(); ok; ok = iter.Next() {
			if err := decode(); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
