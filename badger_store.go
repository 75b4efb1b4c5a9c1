package bundle

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is a Store backed by a Badger database. The database may be
// shared by concurrent readers and writers; Fetch relies on Badger's
// transaction conflict detection to keep exactly one winning value per key.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

// NewBadgerStore wraps an open Badger database. All keys are namespaced
// under prefix.
func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{db: db, prefix: prefix}
}

func (s *BadgerStore) makeKey(key string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, key))
}

// Get implements Store.
func (s *BadgerStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Store.
func (s *BadgerStore) Set(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.makeKey(key), value)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Fetch implements Store. When the key is absent the computed value is
// written in a transaction that re-checks for a concurrent writer; on a
// conflict the transaction retries, so the first committed value wins and
// every caller returns it.
func (s *BadgerStore) Fetch(key string, compute func() ([]byte, error)) ([]byte, error) {
	if v, ok, err := s.Get(key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}

	bk := s.makeKey(key)
	for {
		var existing []byte
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(bk)
			if err == nil {
				existing, err = item.ValueCopy(nil)
				return err
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return txn.Set(bk, v)
		})
		if errors.Is(err, badger.ErrConflict) {
			existing = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storing %s: %w", key, err)
		}
		if existing != nil {
			return existing, nil
		}
		return v, nil
	}
}
