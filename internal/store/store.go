// Package store is the Local Store: a persisted mirror of users, accounts,
// pots, transactions, categories, and rules (spec.md §3), backed by an
// embedded pebble key-value engine rather than a SQL driver the rest of the
// retrieved pack never exercises.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
)

// Store wraps a pebble database and provides the typed accessors every
// other core component reads and writes through.
type Store struct {
	db  *pebble.DB
	log logging.Logger
}

// Open opens (creating if absent) the pebble database at dir.
func Open(dir string, log logging.Logger) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db, log: log.With("component", "store")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) put(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	return s.db.Set(key, b, pebble.Sync)
}

// putBatch is the same as put but deferred into a caller-owned Batch, used
// so a per-account sync commits (or discards) atomically (spec.md §4.2).
func putBatch(b *pebble.Batch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	return b.Set(key, data, nil)
}

func (s *Store) get(key []byte, v any) (bool, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get: %w", err)
	}
	defer closer.Close()
	if err := json.Unmarshal(val, v); err != nil {
		return false, fmt.Errorf("store: unmarshal: %w", err)
	}
	return true, nil
}

func (s *Store) delete(key []byte) error {
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// prefixIter invokes fn for every value stored under keys beginning with
// prefix, in key order, until fn returns false or iteration is exhausted.
func (s *Store) prefixIter(prefix []byte, fn func(key, value []byte) (more bool, err error)) error {
	upper := prefixUpperBound(prefix)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("store: iterate: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		more, err := fn(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return it.Error()
}

// reversePrefixIter is the same as prefixIter but walks newest-key-first,
// used for "most recent transaction" lookups (spec.md §4.2 step 3).
func (s *Store) reversePrefixIter(prefix []byte, fn func(key, value []byte) (more bool, err error)) error {
	upper := prefixUpperBound(prefix)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("store: iterate: %w", err)
	}
	defer it.Close()
	for it.Last(); it.Valid(); it.Prev() {
		more, err := fn(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return it.Error()
}

func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil // prefix was all 0xFF; unbounded above
}

// NewBatch starts a caller-managed batch for multi-row atomic writes (used
// by the sync engine to roll back an entire account's work on timeout).
func (s *Store) NewBatch() *pebble.Batch { return s.db.NewBatch() }

// CommitBatch commits b durably.
func (s *Store) CommitBatch(b *pebble.Batch) error {
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("store: commit batch: %w", err)
	}
	return nil
}

// DiscardBatch abandons b without writing anything, used on the timeout
// path in spec.md §4.2 ("the database transaction ... is rolled back").
func DiscardBatch(b *pebble.Batch) error {
	if err := b.Close(); err != nil {
		return fmt.Errorf("store: discard batch: %w", err)
	}
	return nil
}
