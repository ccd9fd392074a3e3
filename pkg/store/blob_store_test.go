package store

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSink struct {
	events []string
}

func (c *capturingSink) Corruption(record, detail string) {
	c.events = append(c.events, record+": "+detail)
}

func openTestStore(t *testing.T, dir string) (*BlobStore, *RecoveryResult) {
	t.Helper()
	s, err := NewBlobStore(BlobStoreConfig{DataDir: dir})
	require.NoError(t, err)
	recovery, err := s.Open()
	require.NoError(t, err)
	return s, recovery
}

func putBlob(t *testing.T, s *BlobStore, content, metadata []byte) ksuid.KSUID {
	t.Helper()
	props := putProperties(int64(len(content)))
	id, err := s.Put(props, metadata, int64(len(content)), bytes.NewReader(content))
	require.NoError(t, err)
	return id
}

func TestBlobStore_PutGetRoundTrip(t *testing.T) {
	s, _ := openTestStore(t, t.TempDir())
	defer s.Close()

	content := []byte("blob store round trip content")
	metadata := []byte("env=test")
	id := putBlob(t, s, content, metadata)

	msg, err := s.Get(id)
	require.NoError(t, err)
	defer msg.Close()

	assert.Equal(t, id, msg.ID)
	assert.Equal(t, metadata, msg.Message.UserMetadata)
	assert.Equal(t, int64(len(content)), msg.Message.Properties.BlobSize)
	assert.Equal(t, "test-service", msg.Message.Properties.ServiceID)

	got, err := io.ReadAll(msg.Message.Blob.Content())
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlobStore_GetProperties(t *testing.T) {
	s, _ := openTestStore(t, t.TempDir())
	defer s.Close()

	id := putBlob(t, s, bytes.Repeat([]byte{0xAA}, 4096), []byte("m"))

	props, metadata, err := s.GetProperties(id)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), props.BlobSize)
	assert.Equal(t, []byte("m"), metadata)
}

func TestBlobStore_Delete(t *testing.T) {
	s, _ := openTestStore(t, t.TempDir())
	defer s.Close()

	id := putBlob(t, s, []byte("doomed"), nil)
	require.NoError(t, s.Delete(id))

	_, err := s.Get(id)
	assert.Equal(t, ErrBlobDeleted, err)

	err = s.Delete(id)
	assert.Equal(t, ErrBlobDeleted, err)
}

func TestBlobStore_GetUnknownID(t *testing.T) {
	s, _ := openTestStore(t, t.TempDir())
	defer s.Close()

	_, err := s.Get(ksuid.New())
	assert.Equal(t, ErrBlobNotFound, err)
}

func TestBlobStore_ClosedStore(t *testing.T) {
	s, _ := openTestStore(t, t.TempDir())
	require.NoError(t, s.Close())

	_, err := s.Get(ksuid.New())
	assert.Equal(t, ErrStoreClosed, err)
	_, err = s.Put(putProperties(1), nil, 1, bytes.NewReader([]byte("x")))
	assert.Equal(t, ErrStoreClosed, err)
}

func TestBlobStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStore(t, dir)
	content := []byte("persistent blob")
	id := putBlob(t, s, content, nil)
	deleted := putBlob(t, s, []byte("gone"), nil)
	require.NoError(t, s.Delete(deleted))
	require.NoError(t, s.Close())

	s, recovery := openTestStore(t, dir)
	defer s.Close()

	// The index marker matches the log, so nothing needed re-scanning.
	assert.Equal(t, int64(0), recovery.MessagesValidated)
	assert.False(t, recovery.IndexRebuilt)

	msg, err := s.Get(id)
	require.NoError(t, err)
	got, err := io.ReadAll(msg.Message.Blob.Content())
	require.NoError(t, err)
	assert.Equal(t, content, got)
	require.NoError(t, msg.Close())

	_, err = s.Get(deleted)
	assert.Equal(t, ErrBlobDeleted, err)
}

func TestBlobStore_RebuildsIndexWhenMissing(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStore(t, dir)
	id := putBlob(t, s, []byte("reindex me"), nil)
	require.NoError(t, s.Close())

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "index")))

	s, recovery := openTestStore(t, dir)
	defer s.Close()

	assert.True(t, recovery.IndexRebuilt)
	assert.Equal(t, int64(1), recovery.MessagesValidated)

	msg, err := s.Get(id)
	require.NoError(t, err)
	require.NoError(t, msg.Close())
}

func TestBlobStore_RecoveryTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStore(t, dir)
	keep := putBlob(t, s, []byte("kept blob"), nil)
	putBlob(t, s, []byte("torn away blob"), nil)
	require.NoError(t, s.Close())
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "index")))

	// Cut the log mid-way through the second entry.
	logPath := filepath.Join(dir, "active.log")
	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(logPath, raw[:len(raw)-7], 0600))

	sink := &capturingSink{}
	s, err = NewBlobStore(BlobStoreConfig{DataDir: dir})
	require.NoError(t, err)
	s.SetCorruptionLog(sink)
	recovery, err := s.Open()
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int64(1), recovery.MessagesValidated)
	assert.Positive(t, recovery.BytesTruncated)
	assert.NotEmpty(t, sink.events)

	stat, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Equal(t, recovery.FileSizeAfter, stat.Size())

	// The kept blob survives; the store accepts new writes at the new tail.
	msg, err := s.Get(keep)
	require.NoError(t, err)
	require.NoError(t, msg.Close())

	id := putBlob(t, s, []byte("written after recovery"), nil)
	msg, err = s.Get(id)
	require.NoError(t, err)
	require.NoError(t, msg.Close())
}

func TestBlobStore_RecoverySkipsCorruptRegion(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStore(t, dir)
	first := putBlob(t, s, []byte("first blob body"), nil)
	second := putBlob(t, s, []byte("second blob body"), nil)
	third := putBlob(t, s, []byte("third blob body"), nil)
	require.NoError(t, s.Close())
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "index")))

	// Corrupt the second entry's blob content, leaving its header intact.
	reader, err := NewLogReader(filepath.Join(dir, "active.log"), 0)
	require.NoError(t, err)
	var offsets []int64
	var sizes []int64
	for i := 0; i < 3; i++ {
		entry, err := reader.ReadNext()
		require.NoError(t, err)
		offsets = append(offsets, entry.Offset)
		sizes = append(sizes, entry.Size)
	}
	require.NoError(t, reader.Close())
	corruptByteAt(t, filepath.Join(dir, "active.log"), offsets[1]+sizes[1]-9)

	sink := &capturingSink{}
	s, err = NewBlobStore(BlobStoreConfig{DataDir: dir})
	require.NoError(t, err)
	s.SetCorruptionLog(sink)
	recovery, err := s.Open()
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int64(2), recovery.MessagesValidated)
	assert.Equal(t, int64(1), recovery.MessagesSkipped)
	assert.Len(t, sink.events, 1)

	// The entries around the corrupt region are intact.
	for _, id := range []ksuid.KSUID{first, third} {
		msg, err := s.Get(id)
		require.NoError(t, err)
		require.NoError(t, msg.Close())
	}

	// The corrupt blob never made it into the rebuilt index.
	_, err = s.Get(second)
	assert.Equal(t, ErrBlobNotFound, err)
}

func TestBlobStore_Stats(t *testing.T) {
	s, _ := openTestStore(t, t.TempDir())
	defer s.Close()

	putBlob(t, s, []byte("one"), nil)
	putBlob(t, s, []byte("two"), nil)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Blobs)
	assert.Positive(t, stats.DataSize)
}

func TestBlobStore_CorruptBlobReadReportsAndFails(t *testing.T) {
	dir := t.TempDir()

	s, _ := openTestStore(t, dir)
	id := putBlob(t, s, []byte("about to rot"), nil)

	// Find the entry and, after indexing, rot a byte of its header's
	// total_size field so the header checksum no longer matches.
	reader, err := NewLogReader(filepath.Join(dir, "active.log"), 0)
	require.NoError(t, err)
	entry, err := reader.ReadNext()
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.NoError(t, s.Close())
	corruptByteAt(t, filepath.Join(dir, "active.log"), entry.Offset+blobIDSize+4)

	sink := &capturingSink{}
	s, err = NewBlobStore(BlobStoreConfig{DataDir: dir})
	require.NoError(t, err)
	s.SetCorruptionLog(sink)

	// The index marker still matches the log size, so recovery does not
	// rescan; the corruption is met at read time.
	_, err = s.Open()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(id)
	assert.Equal(t, ErrCorruption, err)
	assert.Len(t, sink.events, 1)
}
