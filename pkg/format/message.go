package format

import (
	"io"
	"math"
)

// Message is one logical unit written to the store: a header plus its
// referenced sub-records. Exactly one of two shapes exists on disk: a
// put-message (blob properties, user metadata, blob) or a delete-message
// (delete tombstone only).
type Message struct {
	Header       Header
	Properties   BlobProperties
	UserMetadata []byte
	Blob         *BlobOutput
	Deleted      bool
}

// IsDelete reports whether the message is a delete tombstone.
func (m *Message) IsDelete() bool {
	return m.Header.IsDeleteMessage()
}

// TotalSize returns the full on-disk footprint of the message, header
// included. The log scanner seeks by this amount to skip a message.
func (m *Message) TotalSize() int64 {
	return int64(HeaderSize()) + m.Header.MessageSize()
}

// PutMessageSize returns the serialized size of a complete put-message,
// header included. Producers pre-size their buffers with it.
func PutMessageSize(p BlobProperties, userMetadataLen int, blobSize int64) int64 {
	return int64(HeaderSize()) +
		int64(BlobPropertiesRecordSize(p)) +
		int64(UserMetadataRecordSize(userMetadataLen)) +
		BlobRecordSize(blobSize)
}

// DeleteMessageSize returns the serialized size of a complete
// delete-message, header included.
func DeleteMessageSize() int {
	return HeaderSize() + DeleteRecordSize()
}

// SerializePutMessage lays out header, blob properties, user metadata and
// blob records into buf, streaming blobSize content bytes from blob directly
// into the output through the partial-blob path. Relative offsets are
// measured from the start of the message, header included.
func SerializePutMessage(buf *Buffer, p BlobProperties, userMetadata []byte, blobSize int64, blob io.Reader) error {
	if blobSize < 0 || blobSize > math.MaxInt32 {
		return errf(ErrIO, blobRecord,
			"blob size %d outside the supported range [0, %d]", blobSize, math.MaxInt32)
	}

	propsSize := BlobPropertiesRecordSize(p)
	metadataSize := UserMetadataRecordSize(len(userMetadata))
	totalSize := int64(propsSize) + int64(metadataSize) + BlobRecordSize(blobSize)

	propsOffset := int32(HeaderSize())
	metadataOffset := propsOffset + int32(propsSize)
	blobOffset := metadataOffset + int32(metadataSize)
	if err := SerializeHeader(buf, totalSize, propsOffset, InvalidRelativeOffset, metadataOffset, blobOffset); err != nil {
		return err
	}

	SerializeBlobPropertiesRecord(buf, p)
	SerializeUserMetadataRecord(buf, userMetadata)

	start := buf.Pos()
	SerializePartialBlobRecord(buf, blobSize)
	content := buf.Slice(int(blobSize))
	if _, err := io.ReadFull(blob, content); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errf(ErrIO, blobRecord, "blob source ended before %d bytes", blobSize)
		}
		return ioErr(blobRecord, err)
	}
	buf.Advance(int(blobSize))
	crc := NewCrc32()
	crc.Update(buf.Region(start))
	buf.PutUint64(crc.Value())
	return nil
}

// SerializeDeleteMessage lays out a header and a delete record into buf.
func SerializeDeleteMessage(buf *Buffer, deleted bool) error {
	totalSize := int64(DeleteRecordSize())
	deleteOffset := int32(HeaderSize())
	if err := SerializeHeader(buf, totalSize, InvalidRelativeOffset, deleteOffset,
		InvalidRelativeOffset, InvalidRelativeOffset); err != nil {
		return err
	}
	SerializeDeleteRecord(buf, deleted)
	return nil
}

// ReadMessage reads one complete message from the stream: header first, then
// the sub-records the header references, in on-disk order. For a put-message
// the blob content is not buffered; the caller must drain
// msg.Blob.Content() before reading further from the stream.
func ReadMessage(r io.Reader) (*Message, error) {
	headerBytes := make([]byte, HeaderSize())
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if err == io.ErrUnexpectedEOF {
			return nil, errf(ErrIO, headerRecord, "unexpected end of stream reading header")
		}
		return nil, ioErr(headerRecord, err)
	}

	header, err := ParseHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	if err := header.Verify(); err != nil {
		return nil, err
	}

	msg := &Message{Header: header}
	if header.IsDeleteMessage() {
		deleted, err := DeserializeDelete(r)
		if err != nil {
			return nil, err
		}
		msg.Deleted = deleted
		return msg, nil
	}

	if msg.Properties, err = DeserializeBlobProperties(r); err != nil {
		return nil, err
	}
	if msg.UserMetadata, err = DeserializeUserMetadata(r); err != nil {
		return nil, err
	}
	if msg.Blob, err = DeserializeBlob(r); err != nil {
		return nil, err
	}
	return msg, nil
}
