package format

import (
	"fmt"
	"time"
)

// InfiniteTTL marks a blob that never expires.
const InfiniteTTL int64 = -1

// BlobProperties describes a stored blob: system properties set at put time
// and immutable thereafter. The zero value is a non-private blob of size 0
// with no owner.
type BlobProperties struct {
	TTLSeconds     int64 // InfiniteTTL for no expiry
	Private        bool
	CreationTimeMs int64
	BlobSize       int64
	ContentType    string
	OwnerID        string
	ServiceID      string
}

// NewBlobProperties stamps the creation time and returns properties for a
// blob of the given size.
func NewBlobProperties(blobSize int64, serviceID, ownerID, contentType string, ttlSeconds int64, private bool) BlobProperties {
	return BlobProperties{
		TTLSeconds:     ttlSeconds,
		Private:        private,
		CreationTimeMs: time.Now().UnixMilli(),
		BlobSize:       blobSize,
		ContentType:    contentType,
		OwnerID:        ownerID,
		ServiceID:      serviceID,
	}
}

func (p BlobProperties) String() string {
	return fmt.Sprintf("BlobProperties[size=%d serviceId=%q ownerId=%q contentType=%q ttl=%d private=%t createdMs=%d]",
		p.BlobSize, p.ServiceID, p.OwnerID, p.ContentType, p.TTLSeconds, p.Private, p.CreationTimeMs)
}

// Blob properties value layout V1. The record codec in records.go brackets
// this block with a version tag and a CRC trailer; the value layout itself is
// versioned independently.
//
//	version(2) | ttl_secs(8) | private(1) | creation_time_ms(8) | blob_size(8)
//	 | content_type(2+n) | owner_id(2+n) | service_id(2+n)
//
// Strings are UTF-8 with a 2-byte big-endian length prefix; a length of -1
// encodes an absent string.
const (
	blobPropertiesValueVersionV1 uint16 = 1

	absentStringLength = -1
)

const propertiesRecord = "blob properties"

func serializedStringSize(s string) int {
	return 2 + len(s)
}

// PropertiesSize returns the serialized size of the property value block.
func PropertiesSize(p BlobProperties) int {
	return versionFieldSize +
		8 + // ttl
		1 + // private
		8 + // creation time
		8 + // blob size
		serializedStringSize(p.ContentType) +
		serializedStringSize(p.OwnerID) +
		serializedStringSize(p.ServiceID)
}

func putString(buf *Buffer, s string) {
	if s == "" {
		var n int16 = absentStringLength
		buf.PutUint16(uint16(n))
		return
	}
	buf.PutUint16(uint16(len(s)))
	buf.PutBytes([]byte(s))
}

// WriteProperties serializes the property value block into buf.
func WriteProperties(buf *Buffer, p BlobProperties) {
	buf.PutUint16(blobPropertiesValueVersionV1)
	buf.PutInt64(p.TTLSeconds)
	if p.Private {
		buf.PutUint8(1)
	} else {
		buf.PutUint8(0)
	}
	buf.PutInt64(p.CreationTimeMs)
	buf.PutInt64(p.BlobSize)
	putString(buf, p.ContentType)
	putString(buf, p.OwnerID)
	putString(buf, p.ServiceID)
}

func readString(stream *CrcReader) (string, error) {
	n, err := stream.ReadUint16()
	if err != nil {
		return "", err
	}
	length := int16(n)
	if length == absentStringLength {
		return "", nil
	}
	if length < 0 {
		return "", errf(ErrDataCorrupt, propertiesRecord, "negative string length %d", length)
	}
	b := make([]byte, length)
	if err := stream.ReadFull(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadProperties deserializes the property value block from the stream.
func ReadProperties(stream *CrcReader) (BlobProperties, error) {
	version, err := stream.ReadUint16()
	if err != nil {
		return BlobProperties{}, err
	}
	if version != blobPropertiesValueVersionV1 {
		return BlobProperties{}, errf(ErrUnknownFormatVersion, propertiesRecord,
			"property value version %d not supported", version)
	}

	var p BlobProperties
	if p.TTLSeconds, err = stream.ReadInt64(); err != nil {
		return BlobProperties{}, err
	}
	private, err := stream.ReadUint8()
	if err != nil {
		return BlobProperties{}, err
	}
	p.Private = private == 1
	if p.CreationTimeMs, err = stream.ReadInt64(); err != nil {
		return BlobProperties{}, err
	}
	if p.BlobSize, err = stream.ReadInt64(); err != nil {
		return BlobProperties{}, err
	}
	if p.ContentType, err = readString(stream); err != nil {
		return BlobProperties{}, err
	}
	if p.OwnerID, err = readString(stream); err != nil {
		return BlobProperties{}, err
	}
	if p.ServiceID, err = readString(stream); err != nil {
		return BlobProperties{}, err
	}
	return p, nil
}
