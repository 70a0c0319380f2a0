package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	bs, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err, "Failed to open badger store")
	t.Cleanup(func() {
		if err := bs.Close(); err != nil {
			t.Errorf("Failed to close badger store: %v", err)
		}
	})
	return bs
}

func TestBadgerStore_RecordRoundTrip(t *testing.T) {
	bs := openTestBadger(t)

	record := &FileRecord{
		ID:        "abc-123",
		Name:      "photo.png",
		Size:      5,
		Type:      "image/png",
		Data:      []byte{0x89, 0x50, 0x4E, 0x47, 0x00},
		HasData:   true,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, bs.PutRecord(record))

	got, err := bs.GetRecord("abc-123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Name, got.Name)
	assert.Equal(t, record.Data, got.Data)
	assert.True(t, got.HasData)
	assert.True(t, record.CreatedAt.Equal(got.CreatedAt))
}

func TestBadgerStore_GetMissingRecord(t *testing.T) {
	bs := openTestBadger(t)

	got, err := bs.GetRecord("never-written")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBadgerStore_DeleteRecord(t *testing.T) {
	bs := openTestBadger(t)

	record := &FileRecord{ID: "doomed", Name: "x", HasData: true, Data: []byte("x")}
	require.NoError(t, bs.PutRecord(record))
	require.NoError(t, bs.DeleteRecord("doomed"))

	got, err := bs.GetRecord("doomed")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent record is not an error.
	require.NoError(t, bs.DeleteRecord("doomed"))
}

func TestBadgerStore_ListRecords(t *testing.T) {
	bs := openTestBadger(t)

	for _, id := range []string{"one", "two", "three"} {
		require.NoError(t, bs.PutRecord(&FileRecord{ID: id, Name: id, HasData: true, Data: []byte(id)}))
	}

	records, err := bs.ListRecords()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestBadgerStore_IndexRoundTrip(t *testing.T) {
	bs := openTestBadger(t)

	// An index never written reads back empty.
	entries, err := bs.GetIndex()
	require.NoError(t, err)
	assert.Empty(t, entries)

	want := []IndexEntry{
		{ID: "a", Name: "a.txt", Size: 1, Type: "text/plain", CreatedAt: time.Unix(1700000000, 0).UTC()},
		{ID: "b", Name: "b.txt", Size: 2, Type: "text/plain", CreatedAt: time.Unix(1700000001, 0).UTC()},
	}
	require.NoError(t, bs.PutIndex(want))

	entries, err = bs.GetIndex()
	require.NoError(t, err)
	assert.Equal(t, want, entries)

	// PutIndex replaces, not appends.
	require.NoError(t, bs.PutIndex(want[:1]))
	entries, err = bs.GetIndex()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// The content store and the badger tier together across a simulated
// restart: records written before "shutdown" are served from memory after
// a fresh Open against the same database directory.
func TestBadgerStore_ContentStoreRestart(t *testing.T) {
	dir := t.TempDir()

	bs, err := OpenBadgerStore(dir)
	require.NoError(t, err)

	cs, err := Open(bs)
	require.NoError(t, err)

	data := []byte("durable bytes")
	id, mirrored := cs.Put("persist.txt", "text/plain", data)
	require.NoError(t, awaitMirror(t, mirrored))
	require.NoError(t, bs.Close())

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	restarted, err := Open(reopened)
	require.NoError(t, err)

	record, err := restarted.Get(id)
	require.NoError(t, err)
	assert.Equal(t, data, record.Data)
	assert.Equal(t, "persist.txt", record.Name)
}
