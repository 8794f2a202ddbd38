// ABOUTME: Badger-backed checksum cache store.
// ABOUTME: One key per file under a checksum: prefix, value is the hash.
package checksum

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
)

const keyPrefix = "checksum:"

// BadgerStore persists the cache in a local badger database. It holds
// the same flat map as FileStore, one key per file path.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load() (map[string]string, error) {
	entries := map[string]string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(keyPrefix):])
			if err := item.Value(func(val []byte) error {
				entries[path] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: badger read: %v", ErrCacheCorrupt, err)
	}
	return entries, nil
}

func (s *BadgerStore) Save(entries map[string]string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		// Drop stale keys first so removed files do not linger.
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			path := string(it.Item().Key()[len(keyPrefix):])
			if _, ok := entries[path]; !ok {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for path, hash := range entries {
			if err := txn.Set([]byte(keyPrefix+path), []byte(hash)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger save: %w", err)
	}
	return nil
}

// Close releases the underlying badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
