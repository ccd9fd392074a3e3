package store

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/munin/pkg/format"
)

// LogWriter handles append-only writes to the active data file. Each append
// is one entry: the 20-byte blob ID followed by a complete serialized
// message.
type LogWriter struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     LogWriterConfig
	mutex      sync.Mutex
	offset     int64 // current write offset
}

// NewLogWriter creates a new log writer with the given configuration.
func NewLogWriter(config LogWriterConfig) (*LogWriter, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	// Seek to end for append behavior.
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	bufferSize := config.BufferSize
	if bufferSize == 0 {
		bufferSize = 64 * 1024
	}

	writer := &LogWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, bufferSize),
		config: config,
		offset: stat.Size(),
	}

	if config.FsyncInterval > 0 {
		writer.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			writer.mutex.Lock()
			defer writer.mutex.Unlock()
			writer.sync() // ignore error in timer callback
		})
	}

	return writer, nil
}

// AppendPut serializes a put-message for the blob and appends it. Returns
// the entry's starting offset and its full on-disk size.
func (w *LogWriter) AppendPut(id ksuid.KSUID, props format.BlobProperties, userMetadata []byte, blobSize int64, blob io.Reader) (int64, int64, error) {
	messageSize := format.PutMessageSize(props, len(userMetadata), blobSize)
	entry := make([]byte, blobIDSize+messageSize)
	copy(entry, id.Bytes())

	buf := format.NewBuffer(entry[blobIDSize:])
	if err := format.SerializePutMessage(buf, props, userMetadata, blobSize, blob); err != nil {
		return 0, 0, err
	}

	return w.append(entry)
}

// AppendDelete serializes a delete-tombstone message for the blob and
// appends it.
func (w *LogWriter) AppendDelete(id ksuid.KSUID) (int64, int64, error) {
	entry := make([]byte, blobIDSize+format.DeleteMessageSize())
	copy(entry, id.Bytes())

	buf := format.NewBuffer(entry[blobIDSize:])
	if err := format.SerializeDeleteMessage(buf, true); err != nil {
		return 0, 0, err
	}

	return w.append(entry)
}

func (w *LogWriter) append(entry []byte) (int64, int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := w.writer.Write(entry)
	if err != nil {
		return 0, 0, err
	}

	entryOffset := w.offset
	w.offset += int64(n)

	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return 0, 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}

	return entryOffset, int64(n), nil
}

// Sync forces an fsync to disk.
func (w *LogWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *LogWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close closes the log writer and ensures all data is synced.
func (w *LogWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}

	return w.file.Close()
}

// Size returns the current size of the log file.
func (w *LogWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the file path.
func (w *LogWriter) Path() string {
	return w.config.FilePath
}
