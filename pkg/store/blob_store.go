package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/munin/pkg/format"
	"github.com/ssargent/munin/pkg/index"
)

// BlobStore is the facade over the message log and the blob index. Blobs are
// immutable once put; a delete appends a tombstone message and masks the ID.
type BlobStore struct {
	config   BlobStoreConfig
	writer   *LogWriter
	reader   *LogReader
	idx      *index.Index
	sink     format.CorruptionLog
	dataFile string
	mutex    sync.Mutex
	isOpen   bool
}

// NewBlobStore creates a blob store instance rooted at config.DataDir.
func NewBlobStore(config BlobStoreConfig) (*BlobStore, error) {
	if err := os.MkdirAll(config.DataDir, 0750); err != nil {
		return nil, err
	}

	return &BlobStore{
		config:   config,
		dataFile: filepath.Join(config.DataDir, "active.log"),
		sink:     format.StdCorruptionLog{},
	}, nil
}

// SetCorruptionLog replaces the sink that observes corruption events. Must
// be called before Open.
func (s *BlobStore) SetCorruptionLog(sink format.CorruptionLog) {
	s.sink = sink
}

// Open validates the log, truncates a torn tail, brings the index up to
// date, and readies the store for traffic.
func (s *BlobStore) Open() (*RecoveryResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isOpen {
		return &RecoveryResult{}, nil
	}

	idx, err := index.Open(filepath.Join(s.config.DataDir, "index"))
	if err != nil {
		return nil, err
	}
	s.idx = idx

	recovery, err := s.recover()
	if err != nil {
		s.idx.Close()
		return nil, err
	}

	writer, err := NewLogWriter(LogWriterConfig{
		FilePath:      s.dataFile,
		FsyncInterval: s.config.FsyncInterval,
	})
	if err != nil {
		s.idx.Close()
		return nil, err
	}
	s.writer = writer

	reader, err := NewLogReader(s.dataFile, 0)
	if err != nil {
		s.writer.Close()
		s.idx.Close()
		return nil, err
	}
	s.reader = reader

	s.isOpen = true
	return recovery, nil
}

// recover scans the log from the last offset the index absorbed, applying
// each valid entry to the index, skipping corrupt regions by total_size, and
// truncating a torn tail.
func (s *BlobStore) recover() (*RecoveryResult, error) {
	start := time.Now()
	result := &RecoveryResult{}

	stat, err := os.Stat(s.dataFile)
	if os.IsNotExist(err) {
		result.RecoveryTime = time.Since(start)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.FileSizeBefore = stat.Size()
	result.FileSizeAfter = stat.Size()

	scanFrom, err := s.idx.LogSize()
	if err != nil {
		return nil, err
	}
	if scanFrom > stat.Size() {
		// The index claims more log than exists; it cannot be trusted.
		if err := s.idx.Clear(); err != nil {
			return nil, err
		}
		scanFrom = 0
		result.IndexRebuilt = true
	}
	if scanFrom == stat.Size() {
		result.RecoveryTime = time.Since(start)
		return result, nil
	}
	result.IndexRebuilt = result.IndexRebuilt || scanFrom == 0

	reader, err := NewLogReader(s.dataFile, scanFrom)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	truncateAt := int64(-1)
	for {
		entry, err := reader.ReadNext()
		if err == io.EOF {
			break
		}

		var corrupt *CorruptEntryError
		if errors.As(err, &corrupt) {
			record, detail := format.CorruptionDetail(corrupt.Err)
			s.sink.Corruption(record, detail)
			result.MessagesSkipped++
			continue
		}

		var torn *TornTailError
		if errors.As(err, &torn) {
			record, detail := format.CorruptionDetail(torn.Err)
			s.sink.Corruption(record, detail)
			truncateAt = torn.Offset
			break
		}
		if err != nil {
			return nil, err
		}

		if err := s.applyEntry(entry); err != nil {
			return nil, err
		}
		result.MessagesValidated++
	}

	if truncateAt >= 0 {
		file, err := os.OpenFile(s.dataFile, os.O_RDWR, 0600)
		if err != nil {
			return nil, err
		}
		if err := file.Truncate(truncateAt); err != nil {
			file.Close()
			return nil, err
		}
		if err := file.Close(); err != nil {
			return nil, err
		}
		result.BytesTruncated = result.FileSizeBefore - truncateAt
		result.FileSizeAfter = truncateAt
	}

	if err := s.idx.SetLogSize(result.FileSizeAfter); err != nil {
		return nil, err
	}

	result.RecoveryTime = time.Since(start)
	return result, nil
}

func (s *BlobStore) applyEntry(entry *Entry) error {
	if entry.IsDelete {
		existing, found, err := s.idx.Get(entry.ID)
		if err != nil {
			return err
		}
		if !found {
			// Tombstone for a blob whose put fell outside this log; index
			// the tombstone itself so the delete remains visible.
			existing = index.Entry{Offset: entry.Offset, Size: entry.Size}
		}
		existing.Deleted = true
		return s.idx.Put(entry.ID, existing)
	}
	return s.idx.Put(entry.ID, index.Entry{Offset: entry.Offset, Size: entry.Size})
}

// Put stores a blob and returns its generated ID.
func (s *BlobStore) Put(props format.BlobProperties, userMetadata []byte, blobSize int64, blob io.Reader) (ksuid.KSUID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ksuid.Nil, ErrStoreClosed
	}

	id := ksuid.New()
	offset, size, err := s.writer.AppendPut(id, props, userMetadata, blobSize, blob)
	if err != nil {
		return ksuid.Nil, err
	}

	if err := s.idx.Put(id, index.Entry{Offset: offset, Size: size}); err != nil {
		return ksuid.Nil, err
	}
	if err := s.idx.SetLogSize(offset + size); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

// Get returns the stored message for a blob. The blob content on the
// returned message is lazy; the caller drains it and closes the handle.
func (s *BlobStore) Get(id ksuid.KSUID) (*StoredMessage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	msg, err := s.reader.ReadMessageAt(entry.Offset)
	if err != nil {
		return nil, s.reportRead(err)
	}
	return msg, nil
}

// GetProperties returns the blob properties and user metadata without
// touching the blob content.
func (s *BlobStore) GetProperties(id ksuid.KSUID) (format.BlobProperties, []byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, err := s.lookup(id)
	if err != nil {
		return format.BlobProperties{}, nil, err
	}

	msg, err := s.reader.ReadMessageAt(entry.Offset)
	if err != nil {
		return format.BlobProperties{}, nil, s.reportRead(err)
	}
	defer msg.Close()

	return msg.Message.Properties, msg.Message.UserMetadata, nil
}

// Delete appends a tombstone for the blob and masks it in the index.
func (s *BlobStore) Delete(id ksuid.KSUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, err := s.lookup(id)
	if err != nil {
		return err
	}

	offset, size, err := s.writer.AppendDelete(id)
	if err != nil {
		return err
	}

	entry.Deleted = true
	if err := s.idx.Put(id, entry); err != nil {
		return err
	}
	return s.idx.SetLogSize(offset + size)
}

// lookup resolves an ID through the index; the caller holds the mutex.
func (s *BlobStore) lookup(id ksuid.KSUID) (index.Entry, error) {
	if !s.isOpen {
		return index.Entry{}, ErrStoreClosed
	}

	entry, found, err := s.idx.Get(id)
	if err != nil {
		return index.Entry{}, err
	}
	if !found {
		return index.Entry{}, ErrBlobNotFound
	}
	if entry.Deleted {
		return index.Entry{}, ErrBlobDeleted
	}
	return entry, nil
}

// reportRead logs a corruption event for a failed random-access read and
// maps format corruption to the store error vocabulary.
func (s *BlobStore) reportRead(err error) error {
	if errors.Is(err, format.ErrDataCorrupt) || errors.Is(err, format.ErrHeaderConstraint) ||
		errors.Is(err, format.ErrUnknownFormatVersion) {
		record, detail := format.CorruptionDetail(err)
		s.sink.Corruption(record, detail)
		return ErrCorruption
	}
	return err
}

// Stats returns store statistics.
func (s *BlobStore) Stats() *StoreStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return &StoreStats{}
	}

	blobs, err := s.idx.Len()
	if err != nil {
		blobs = 0
	}
	return &StoreStats{
		Blobs:    blobs,
		DataSize: s.writer.Size(),
	}
}

// Close shuts down the store.
func (s *BlobStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	var firstErr error
	if err := s.writer.Close(); err != nil {
		firstErr = err
	}
	if err := s.reader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.idx.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
