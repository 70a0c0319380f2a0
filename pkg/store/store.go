package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("record not found")

	// ErrStoreIO marks a durable-tier failure. In-memory operations still
	// succeed; only the durability guarantee is degraded.
	ErrStoreIO = errors.New("durable store unavailable")
)

// ContentStore is the key-value store of file records backing the
// share-via-link variant. Reads and writes hit an in-memory map; every
// mutation is mirrored to the durable tier (full record) and to the
// lightweight metadata index (projection), so entries stay visible after
// a restart.
//
// Safe for concurrent use.
type ContentStore struct {
	mu      sync.RWMutex
	records map[string]*FileRecord
	durable Durable

	// mirrorMu serializes index rewrites so concurrent puts cannot
	// interleave stale snapshots.
	mirrorMu sync.Mutex
	pending  sync.WaitGroup
}

// Open loads the durable tier into memory and returns a serving store.
// Reconciliation order: metadata-only index entries first, then full
// durable records overlaid by id — a full record always wins over a
// placeholder.
func Open(durable Durable) (*ContentStore, error) {
	if durable == nil {
		return nil, errors.New("durable tier is required")
	}

	cs := &ContentStore{
		records: make(map[string]*FileRecord),
		durable: durable,
	}

	entries, err := durable.GetIndex()
	if err != nil {
		return nil, fmt.Errorf("%w: loading index: %v", ErrStoreIO, err)
	}
	for _, entry := range entries {
		cs.records[entry.ID] = &FileRecord{
			ID:        entry.ID,
			Name:      entry.Name,
			Size:      entry.Size,
			Type:      entry.Type,
			CreatedAt: entry.CreatedAt,
			HasData:   false,
		}
	}

	records, err := durable.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("%w: loading records: %v", ErrStoreIO, err)
	}
	for _, record := range records {
		cs.records[record.ID] = record
	}

	slog.Info("Content store opened", "records", len(cs.records))
	return cs, nil
}

// Put inserts a new record and returns its id immediately after the
// in-memory insert. Mirroring to the durable tier runs asynchronously; the
// returned channel receives exactly one value — nil, or an ErrStoreIO
// wrapped failure — so callers that need crash durability can await it.
func (cs *ContentStore) Put(name, mimeType string, data []byte) (string, <-chan error) {
	record := &FileRecord{
		ID:        uuid.New().String(),
		Name:      name,
		Size:      uint64(len(data)),
		Type:      mimeType,
		Data:      data,
		HasData:   true,
		CreatedAt: time.Now(),
	}

	cs.mu.Lock()
	cs.records[record.ID] = record
	cs.mu.Unlock()

	mirrored := make(chan error, 1)
	cs.pending.Add(1)
	go func() {
		defer cs.pending.Done()
		mirrored <- cs.mirror(record)
	}()

	return record.ID, mirrored
}

// mirror writes the full record to the durable tier and refreshes the
// metadata index. Failures are reported once, never retried.
func (cs *ContentStore) mirror(record *FileRecord) error {
	cs.mirrorMu.Lock()
	defer cs.mirrorMu.Unlock()

	// A Delete may have landed while this mirror was still queued. Writing
	// the record now would put it back in the durable tier and the next
	// Open would resurrect it, so a dead record is skipped. Delete holds
	// mirrorMu for its durable removal, which keeps the check and the
	// write below on the same side of any concurrent delete.
	cs.mu.RLock()
	_, live := cs.records[record.ID]
	cs.mu.RUnlock()
	if !live {
		slog.Debug("Skipping mirror of deleted record", "id", record.ID)
		return nil
	}

	if err := cs.durable.PutRecord(record); err != nil {
		slog.Error("Failed to mirror record to durable tier", "id", record.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if err := cs.durable.PutIndex(cs.indexSnapshot()); err != nil {
		slog.Error("Failed to update metadata index", "id", record.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// Get returns the record for id from memory. It never falls through to the
// durable tier; durable data is loaded once, at Open. The returned struct
// is a copy, so callers cannot mutate the store's entry; the Data bytes
// are shared and must be treated as read-only.
func (cs *ContentStore) Get(id string) (*FileRecord, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	record, ok := cs.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *record
	return &snapshot, nil
}

// List returns a metadata-only snapshot of the current map. Order is not
// specified.
func (cs *ContentStore) List() []IndexEntry {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.indexSnapshotLocked()
}

// Delete removes the record from memory, the durable tier and the metadata
// index, and reports whether the id was present. A durable-tier failure
// still leaves memory consistent and is returned as ErrStoreIO.
func (cs *ContentStore) Delete(id string) (bool, error) {
	cs.mu.Lock()
	_, existed := cs.records[id]
	delete(cs.records, id)
	cs.mu.Unlock()

	if !existed {
		return false, nil
	}

	cs.mirrorMu.Lock()
	defer cs.mirrorMu.Unlock()

	if err := cs.durable.DeleteRecord(id); err != nil {
		slog.Error("Failed to delete record from durable tier", "id", id, "error", err)
		return true, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	// Rewrite the index so a restart does not resurrect the entry.
	if err := cs.durable.PutIndex(cs.indexSnapshot()); err != nil {
		slog.Error("Failed to update metadata index after delete", "id", id, "error", err)
		return true, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return true, nil
}

// BlobHandle returns a reader over the record's bytes, or false when the
// record is absent or is a metadata-only placeholder without bytes.
func (cs *ContentStore) BlobHandle(id string) (io.Reader, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	record, ok := cs.records[id]
	if !ok || !record.HasData || len(record.Data) == 0 {
		return nil, false
	}
	return bytes.NewReader(record.Data), true
}

// Flush blocks until every in-flight durable mirror has finished. Used on
// shutdown and by tests.
func (cs *ContentStore) Flush() {
	cs.pending.Wait()
}

func (cs *ContentStore) indexSnapshot() []IndexEntry {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.indexSnapshotLocked()
}

func (cs *ContentStore) indexSnapshotLocked() []IndexEntry {
	entries := make([]IndexEntry, 0, len(cs.records))
	for _, record := range cs.records {
		entries = append(entries, IndexEntry{
			ID:        record.ID,
			Name:      record.Name,
			Size:      record.Size,
			Type:      record.Type,
			CreatedAt: record.CreatedAt,
		})
	}
	return entries
}
