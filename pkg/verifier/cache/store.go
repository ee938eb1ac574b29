package cache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger for record storage.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store in dir.
func OpenStore(dir string) (*Store, error) {
	return openStore(badger.DefaultOptions(dir))
}

// OpenMemoryStore opens a store that lives only in memory.
func OpenMemoryStore() (*Store, error) {
	return openStore(badger.DefaultOptions("").WithInMemory(true))
}

func openStore(opts badger.Options) (*Store, error) {
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the record stored under key.
func (s *Store) Get(key []byte) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(rec.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put stores rec under key.
func (s *Store) Put(key []byte, rec *Record) error {
	value, err := rec.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed. An empty prefix removes everything.
func (s *Store) DeletePrefix(prefix []byte) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Each calls fn for every record in key order. Returning an error from fn
// stops the iteration and is returned.
func (s *Store) Each(fn func(key []byte, rec *Record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec Record
			if err := item.Value(rec.Decode); err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), &rec); err != nil {
				return err
			}
		}
		return nil
	})
}
