// Package index maintains the persistent blob index: a pebble-backed map
// from blob ID to the location of the latest message for that blob in the
// log. The index is a cache over the log; the log is the source of truth and
// the index is rebuilt from it whenever the two disagree.
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
)

// Entry locates the latest message for a blob in the log.
type Entry struct {
	Offset  int64 // byte offset of the message in the log file
	Size    int64 // full on-disk size of the message
	Deleted bool  // latest message is a delete tombstone
}

const entryEncodedSize = 17 // offset(8) + size(8) + flags(1)

// logSizeKey tracks how much of the log the index has absorbed. Blob ID keys
// are 20 raw ksuid bytes, so a short prefixed key cannot collide.
var logSizeKey = []byte("!meta:log_size")

func encodeEntry(e Entry) []byte {
	b := make([]byte, entryEncodedSize)
	binary.BigEndian.PutUint64(b[0:], uint64(e.Offset))
	binary.BigEndian.PutUint64(b[8:], uint64(e.Size))
	if e.Deleted {
		b[16] = 1
	}
	return b
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) != entryEncodedSize {
		return Entry{}, fmt.Errorf("index entry has %d bytes, want %d", len(b), entryEncodedSize)
	}
	return Entry{
		Offset:  int64(binary.BigEndian.Uint64(b[0:])),
		Size:    int64(binary.BigEndian.Uint64(b[8:])),
		Deleted: b[16] == 1,
	}, nil
}

// Index is the pebble-backed blob index.
type Index struct {
	db *pebble.DB
}

// Open opens or creates the index at path.
func Open(path string) (*Index, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening blob index: %w", err)
	}
	return &Index{db: db}, nil
}

// Put records the latest message location for a blob.
func (ix *Index) Put(id ksuid.KSUID, e Entry) error {
	return ix.db.Set(id.Bytes(), encodeEntry(e), pebble.NoSync)
}

// Get returns the entry for a blob, reporting whether one exists.
func (ix *Index) Get(id ksuid.KSUID) (Entry, bool, error) {
	value, closer, err := ix.db.Get(id.Bytes())
	if err == pebble.ErrNotFound {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	defer closer.Close()

	entry, err := decodeEntry(value)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Len counts blob entries, tombstoned ones included.
func (ix *Index) Len() (int, error) {
	iter, err := ix.db.NewIter(nil)
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Key()) == len(ksuid.Nil.Bytes()) {
			count++
		}
	}
	return count, iter.Error()
}

// LogSize returns the log size the index has absorbed, or 0 for a fresh
// index.
func (ix *Index) LogSize() (int64, error) {
	value, closer, err := ix.db.Get(logSizeKey)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(value) != 8 {
		return 0, fmt.Errorf("log size marker has %d bytes, want 8", len(value))
	}
	return int64(binary.BigEndian.Uint64(value)), nil
}

// SetLogSize records the log size the index is current with. Synced, so a
// crash can only leave the marker behind the log, never ahead.
func (ix *Index) SetLogSize(size int64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(size))
	return ix.db.Set(logSizeKey, b, pebble.Sync)
}

// Clear drops every entry so the index can be rebuilt from the log.
func (ix *Index) Clear() error {
	iter, err := ix.db.NewIter(nil)
	if err != nil {
		return err
	}
	batch := ix.db.NewBatch()
	for iter.First(); iter.Valid(); iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		if err := batch.Delete(key, nil); err != nil {
			iter.Close()
			batch.Close()
			return err
		}
	}
	if err := iter.Close(); err != nil {
		batch.Close()
		return err
	}
	return ix.db.Apply(batch, pebble.Sync)
}

// Close closes the underlying pebble database.
func (ix *Index) Close() error {
	return ix.db.Close()
}
