package store

import "time"

// FileRecord is one stored file: descriptive metadata plus, when retained,
// the bytes themselves. HasData distinguishes full records from
// metadata-only placeholders synced from an index whose bytes never
// reached this store.
type FileRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      uint64    `json:"size"`
	Type      string    `json:"type"`
	Data      []byte    `json:"data,omitempty"`
	HasData   bool      `json:"has_data"`
	CreatedAt time.Time `json:"created_at"`
}

// IndexEntry is the metadata-only projection of a FileRecord kept in the
// lightweight index so entries stay visible across restarts even when the
// full record was not retained.
type IndexEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      uint64    `json:"size"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Durable is the backing tier that survives process restarts. All methods
// may touch disk or the network; the ContentStore calls them off the hot
// path wherever the contract allows.
type Durable interface {
	GetRecord(id string) (*FileRecord, error)
	PutRecord(record *FileRecord) error
	DeleteRecord(id string) error
	ListRecords() ([]*FileRecord, error)

	GetIndex() ([]IndexEntry, error)
	PutIndex(entries []IndexEntry) error
}
