package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const (
	recordKeyPrefix = "record:"
	indexKey        = "index"
)

// BadgerStore implements the Durable tier on top of BadgerDB. Records are
// stored as JSON under "record:<id>"; the metadata index lives as one JSON
// array under its own key.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a BadgerDB at the given path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}

func (bs *BadgerStore) GetRecord(id string) (*FileRecord, error) {
	var record FileRecord
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}
	return &record, nil
}

func (bs *BadgerStore) PutRecord(record *FileRecord) error {
	val, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}
	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+record.ID), val)
	})
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.ID, err)
	}
	return nil
}

func (bs *BadgerStore) DeleteRecord(id string) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(recordKeyPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (bs *BadgerStore) ListRecords() ([]*FileRecord, error) {
	var records []*FileRecord
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record FileRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				records = append(records, &record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

func (bs *BadgerStore) GetIndex() ([]IndexEntry, error) {
	var entries []IndexEntry
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entries)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return entries, nil
}

func (bs *BadgerStore) PutIndex(entries []IndexEntry) error {
	val, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(indexKey), val)
	})
	if err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}
