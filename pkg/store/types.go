// Package store implements the append-only message log of the Munin blob
// store and the BlobStore facade over it. Messages are framed by pkg/format;
// the store adds the blob ID envelope, the pebble-backed offset index, and
// crash recovery.
package store

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/munin/pkg/format"
)

// blobIDSize is the binary length of a ksuid blob ID. Each log entry is the
// ID followed by one serialized message.
const blobIDSize = 20

// LogWriterConfig holds configuration for the log writer.
type LogWriterConfig struct {
	FilePath      string        // path to the active data file
	FsyncInterval time.Duration // how often to fsync (0 = every write)
	BufferSize    int           // write buffer size
}

// BlobStoreConfig holds configuration for the blob store.
type BlobStoreConfig struct {
	DataDir       string        // directory for the log and index
	FsyncInterval time.Duration // fsync interval for durability
}

// Entry is one scanned log entry: the blob ID plus the decoded message,
// blob content excluded.
type Entry struct {
	ID           ksuid.KSUID
	Offset       int64 // start of the entry in the log file
	Size         int64 // id envelope + header + payload
	IsDelete     bool
	Deleted      bool
	Properties   format.BlobProperties
	UserMetadata []byte
}

// RecoveryResult summarizes what Open found in the log.
type RecoveryResult struct {
	MessagesValidated int64
	MessagesSkipped   int64 // corrupt regions skipped by total_size
	BytesTruncated    int64 // torn tail removed from the log
	FileSizeBefore    int64
	FileSizeAfter     int64
	IndexRebuilt      bool
	RecoveryTime      time.Duration
}

// StoreStats holds statistics about the store.
type StoreStats struct {
	Blobs    int   // indexed blobs, tombstoned included
	DataSize int64 // log file size in bytes
}

// Errors
var (
	ErrBlobNotFound = &StoreError{"blob not found"}
	ErrBlobDeleted  = &StoreError{"blob is deleted"}
	ErrStoreClosed  = &StoreError{"store is not open"}
	ErrCorruption   = &StoreError{"data corruption detected"}
)

// StoreError represents a blob store error.
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
