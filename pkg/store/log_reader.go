package store

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/munin/pkg/format"
)

// CorruptEntryError reports a corrupt message whose header was intact: the
// scanner has already skipped past it by total_size and may continue.
type CorruptEntryError struct {
	Offset int64
	Err    error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("corrupt entry at offset %d: %v", e.Offset, e.Err)
}

func (e *CorruptEntryError) Unwrap() error {
	return e.Err
}

// TornTailError reports an entry that cannot be trusted past its starting
// offset: a truncated entry or a header that fails verification. The log is
// unreadable from Offset on; recovery truncates there.
type TornTailError struct {
	Offset int64
	Err    error
}

func (e *TornTailError) Error() string {
	return fmt.Sprintf("unreadable log from offset %d: %v", e.Offset, e.Err)
}

func (e *TornTailError) Unwrap() error {
	return e.Err
}

// LogReader provides sequential access to log entries. Blob content is
// drained, not retained; random access reads go through ReadMessageAt.
type LogReader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
	path   string
}

// NewLogReader opens the log for sequential reading from startOffset.
func NewLogReader(path string, startOffset int64) (*LogReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if startOffset > 0 {
		if _, err := file.Seek(startOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	return &LogReader{
		file:   file,
		reader: bufio.NewReader(file),
		offset: startOffset,
		path:   path,
	}, nil
}

// ReadNext reads the entry at the current offset. It returns io.EOF at a
// clean end of log, a *CorruptEntryError for a skippable corrupt message,
// and a *TornTailError when the log cannot be read further.
func (r *LogReader) ReadNext() (*Entry, error) {
	entryOffset := r.offset

	var idBytes [blobIDSize]byte
	n, err := io.ReadFull(r.reader, idBytes[:])
	if err == io.EOF {
		return nil, io.EOF
	}
	r.offset += int64(n)
	if err != nil {
		return nil, &TornTailError{Offset: entryOffset, Err: err}
	}
	id, err := ksuid.FromBytes(idBytes[:])
	if err != nil {
		return nil, &TornTailError{Offset: entryOffset, Err: err}
	}

	headerBytes := make([]byte, format.HeaderSize())
	n, err = io.ReadFull(r.reader, headerBytes)
	r.offset += int64(n)
	if err != nil {
		return nil, &TornTailError{Offset: entryOffset, Err: err}
	}

	header, err := format.ParseHeader(headerBytes)
	if err != nil {
		return nil, &TornTailError{Offset: entryOffset, Err: err}
	}
	// An unverifiable header means total_size cannot be trusted, so the
	// corrupt region cannot be skipped.
	if err := header.Verify(); err != nil {
		return nil, &TornTailError{Offset: entryOffset, Err: err}
	}

	payloadSize := header.MessageSize()
	payload := &io.LimitedReader{R: r.reader, N: payloadSize}
	entrySize := int64(blobIDSize) + int64(format.HeaderSize()) + payloadSize

	entry := &Entry{
		ID:       id,
		Offset:   entryOffset,
		Size:     entrySize,
		IsDelete: header.IsDeleteMessage(),
	}

	decodeErr := r.decodePayload(header, payload, entry)

	// Position at the next entry whether or not the payload decoded; the
	// remainder is only leftovers of a corrupt message.
	drained, err := io.Copy(io.Discard, payload)
	r.offset += payloadSize - payload.N
	if err != nil {
		return nil, &TornTailError{Offset: entryOffset, Err: err}
	}
	if payload.N > 0 {
		// The file ended before total_size bytes of payload: a torn tail,
		// not a skippable region, whatever the decoder reported.
		cause := decodeErr
		if cause == nil {
			cause = io.ErrUnexpectedEOF
		}
		return nil, &TornTailError{Offset: entryOffset, Err: cause}
	}
	if decodeErr == nil && drained > 0 {
		decodeErr = &format.FormatError{Kind: format.ErrDataCorrupt, Record: "message",
			Msg: fmt.Sprintf("%d trailing bytes after the last sub-record", drained)}
	}

	if decodeErr != nil {
		return nil, &CorruptEntryError{Offset: entryOffset, Err: decodeErr}
	}
	return entry, nil
}

// decodePayload reads the sub-records the header references. The payload
// reader is bounded at total_size, so a size field lying past the message
// boundary surfaces as truncation.
func (r *LogReader) decodePayload(header format.Header, payload io.Reader, entry *Entry) error {
	if header.IsDeleteMessage() {
		deleted, err := format.DeserializeDelete(payload)
		if err != nil {
			return err
		}
		entry.Deleted = deleted
		return nil
	}

	props, err := format.DeserializeBlobProperties(payload)
	if err != nil {
		return err
	}
	userMetadata, err := format.DeserializeUserMetadata(payload)
	if err != nil {
		return err
	}
	blob, err := format.DeserializeBlob(payload)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, blob.Content()); err != nil {
		return err
	}

	entry.Properties = props
	entry.UserMetadata = userMetadata
	return nil
}

// Offset returns the current read offset.
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Close closes the log reader.
func (r *LogReader) Close() error {
	return r.file.Close()
}

// StoredMessage is a random-access view of one log entry. The blob content
// is lazy; the caller drains it (or not) and then closes the handle.
type StoredMessage struct {
	ID      ksuid.KSUID
	Message *format.Message
	file    *os.File
}

// Close releases the underlying file handle.
func (m *StoredMessage) Close() error {
	return m.file.Close()
}

// ReadMessageAt reads the entry at the given offset through a dedicated file
// handle, so concurrent readers and the sequential scanner do not disturb
// each other.
func (r *LogReader) ReadMessageAt(offset int64) (*StoredMessage, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, err
	}

	reader := bufio.NewReader(file)

	var idBytes [blobIDSize]byte
	if _, err := io.ReadFull(reader, idBytes[:]); err != nil {
		file.Close()
		return nil, err
	}
	id, err := ksuid.FromBytes(idBytes[:])
	if err != nil {
		file.Close()
		return nil, err
	}

	msg, err := format.ReadMessage(reader)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &StoredMessage{ID: id, Message: msg, file: file}, nil
}
