package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCache relies on the native TTL of badger entries.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCache opens a badger database at path, or an in memory one
// when path is empty.
func NewBadgerCache(path string, ttl time.Duration) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: cannot open badger at %s: %w", path, err)
	}
	return &BadgerCache{db: db, ttl: ttl}, nil
}

func (bc *BadgerCache) Get(key string) ([]byte, error) {
	var body []byte
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	return body, err
}

func (bc *BadgerCache) Set(key string, body []byte) error {
	return bc.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), body)
		if bc.ttl > 0 {
			e = e.WithTTL(bc.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (bc *BadgerCache) Unset(key string) error {
	return bc.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (bc *BadgerCache) Close() error {
	return bc.db.Close()
}
