package format

import "encoding/binary"

// Record format generations. Each record carries a leading 2-byte version
// tag; deserializers dispatch on it through the tables in registry.go.
const (
	MessageHeaderVersionV1  uint16 = 1
	BlobPropertiesVersionV1 uint16 = 1
	DeleteVersionV1         uint16 = 1
	UserMetadataVersionV1   uint16 = 1
	BlobVersionV1           uint16 = 1
)

// InvalidRelativeOffset marks a sub-record as absent from a message.
const InvalidRelativeOffset int32 = -1

const (
	versionFieldSize = 2
	crcFieldSize     = 8
)

// Message header V1 layout. All integers big-endian.
//
//	version(2) | total_size(8) | blob_properties_rel_off(4) | delete_rel_off(4)
//	 | user_metadata_rel_off(4) | blob_rel_off(4) | crc(8)
//
// Exactly one of two shapes is legal: a put-message header points at
// BlobProperties, UserMetadata and Blob records and carries an invalid delete
// offset; a delete-message header points at a Delete record only.
const (
	totalSizeFieldOffset          = versionFieldSize
	totalSizeFieldSize            = 8
	relativeOffsetFieldSize       = 4
	numberOfRelativeOffsetFields  = 4
	blobPropertiesOffsetFieldPos  = totalSizeFieldOffset + totalSizeFieldSize
	deleteOffsetFieldPos          = blobPropertiesOffsetFieldPos + relativeOffsetFieldSize
	userMetadataOffsetFieldPos    = deleteOffsetFieldPos + relativeOffsetFieldSize
	blobOffsetFieldPos            = userMetadataOffsetFieldPos + relativeOffsetFieldSize
	headerCrcFieldPos             = blobOffsetFieldPos + relativeOffsetFieldSize
)

const headerRecord = "message header"

// HeaderSize returns the serialized size of a V1 message header.
func HeaderSize() int {
	return versionFieldSize +
		totalSizeFieldSize +
		numberOfRelativeOffsetFields*relativeOffsetFieldSize +
		crcFieldSize
}

// checkHeaderConstraints enforces the cross-field invariants, in fixed order:
// total size first, then the put shape, then the delete shape. Zero is never
// a legal offset.
func checkHeaderConstraints(totalSize int64, blobPropertiesOffset, deleteOffset, userMetadataOffset, blobOffset int32) error {
	if totalSize <= 0 {
		return errf(ErrHeaderConstraint, headerRecord,
			"total size %d must be greater than 0", totalSize)
	}

	if blobPropertiesOffset > 0 &&
		(deleteOffset != InvalidRelativeOffset || userMetadataOffset <= 0 || blobOffset <= 0) {
		return errf(ErrHeaderConstraint, headerRecord,
			"blob properties offset %d set but offsets do not form a put message: delete %d user metadata %d blob %d",
			blobPropertiesOffset, deleteOffset, userMetadataOffset, blobOffset)
	}

	if deleteOffset > 0 &&
		(blobPropertiesOffset != InvalidRelativeOffset || userMetadataOffset != InvalidRelativeOffset || blobOffset != InvalidRelativeOffset) {
		return errf(ErrHeaderConstraint, headerRecord,
			"delete offset %d set but offsets do not form a delete message: blob properties %d user metadata %d blob %d",
			deleteOffset, blobPropertiesOffset, userMetadataOffset, blobOffset)
	}

	if blobPropertiesOffset <= 0 && deleteOffset <= 0 {
		return errf(ErrHeaderConstraint, headerRecord,
			"neither a put nor a delete message: blob properties %d delete %d user metadata %d blob %d",
			blobPropertiesOffset, deleteOffset, userMetadataOffset, blobOffset)
	}

	return nil
}

// SerializeHeader writes a V1 header into buf after checking the cross-field
// invariants. totalSize is the size of the payload following the header.
func SerializeHeader(buf *Buffer, totalSize int64, blobPropertiesOffset, deleteOffset, userMetadataOffset, blobOffset int32) error {
	if err := checkHeaderConstraints(totalSize, blobPropertiesOffset, deleteOffset, userMetadataOffset, blobOffset); err != nil {
		return err
	}
	start := buf.Pos()
	buf.PutUint16(MessageHeaderVersionV1)
	buf.PutInt64(totalSize)
	buf.PutInt32(blobPropertiesOffset)
	buf.PutInt32(deleteOffset)
	buf.PutInt32(userMetadataOffset)
	buf.PutInt32(blobOffset)
	crc := NewCrc32()
	crc.Update(buf.Region(start))
	buf.PutUint64(crc.Value())
	return nil
}

// Header is a non-copying view over a serialized message header.
type Header struct {
	buf []byte
}

// ParseHeader wraps b, which must hold at least HeaderSize bytes of a header
// of a known version. The view shares b; it does not copy.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize() {
		return Header{}, errf(ErrIO, headerRecord,
			"need %d bytes, have %d", HeaderSize(), len(b))
	}
	h := Header{buf: b[:HeaderSize()]}
	if h.Version() != MessageHeaderVersionV1 {
		return Header{}, errf(ErrUnknownFormatVersion, headerRecord,
			"version %d not supported", h.Version())
	}
	return h, nil
}

// Version returns the header format generation.
func (h Header) Version() uint16 {
	return binary.BigEndian.Uint16(h.buf)
}

// MessageSize returns the size of the payload following the header.
func (h Header) MessageSize() int64 {
	return int64(binary.BigEndian.Uint64(h.buf[totalSizeFieldOffset:]))
}

// BlobPropertiesOffset returns the relative offset of the BlobProperties
// record, or InvalidRelativeOffset.
func (h Header) BlobPropertiesOffset() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[blobPropertiesOffsetFieldPos:]))
}

// DeleteOffset returns the relative offset of the Delete record, or
// InvalidRelativeOffset.
func (h Header) DeleteOffset() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[deleteOffsetFieldPos:]))
}

// UserMetadataOffset returns the relative offset of the UserMetadata record,
// or InvalidRelativeOffset.
func (h Header) UserMetadataOffset() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[userMetadataOffsetFieldPos:]))
}

// BlobOffset returns the relative offset of the Blob record, or
// InvalidRelativeOffset.
func (h Header) BlobOffset() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[blobOffsetFieldPos:]))
}

// Crc returns the stored header checksum.
func (h Header) Crc() uint64 {
	return binary.BigEndian.Uint64(h.buf[headerCrcFieldPos:])
}

// IsPutMessage reports whether the header points at a put-message payload.
func (h Header) IsPutMessage() bool {
	return h.BlobPropertiesOffset() > 0
}

// IsDeleteMessage reports whether the header points at a delete-message
// payload.
func (h Header) IsDeleteMessage() bool {
	return h.DeleteOffset() > 0
}

// Verify recomputes the checksum over the header body and re-checks the
// cross-field invariants.
func (h Header) Verify() error {
	crc := NewCrc32()
	crc.Update(h.buf[:headerCrcFieldPos])
	if crc.Value() != h.Crc() {
		return errf(ErrDataCorrupt, headerRecord,
			"crc mismatch: expected %d actual %d", h.Crc(), crc.Value())
	}
	return checkHeaderConstraints(h.MessageSize(), h.BlobPropertiesOffset(), h.DeleteOffset(),
		h.UserMetadataOffset(), h.BlobOffset())
}
