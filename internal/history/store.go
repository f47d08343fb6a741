// Package history keeps an audit log of record updates in badger. It does not
// hold watcher state; every process run still starts without a confirmed IP.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
)

const updatePrefix = "update:"

type Store interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context) ([]Entry, error)
	Close() error
}

type badgerStore struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

func New(path string, metrics *metrics.Metrics) (Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &badgerStore{db: db, metrics: metrics}, nil
}

func entryKey(zone, recordID string) []byte {
	return []byte(updatePrefix + zone + ":" + recordID)
}

// Record stores entry, replacing the previous entry for the same record.
func (s *badgerStore) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		s.metrics.IncHistoryRequest("update", false)
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.Zone, entry.RecordID), data)
	})
	s.metrics.IncHistoryRequest("update", err == nil)
	return err
}

// Recent returns the latest entry of every updated record, newest first.
func (s *badgerStore) Recent(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(updatePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.IncHistoryRequest("read", err == nil)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AppliedAt > entries[j].AppliedAt
	})
	return entries, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
