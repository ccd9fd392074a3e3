package format

import (
	"io"
	"math"
)

const (
	userMetadataSizeFieldSize = 4
	blobSizeFieldSize         = 8
	deleteFieldSize           = 1
)

const (
	userMetadataRecord = "user metadata"
	blobRecord         = "blob"
	deleteRecord       = "delete record"
)

// Blob properties record V1.
//
//	version(2) | properties(variable) | crc(8)

// BlobPropertiesRecordSize returns the serialized size of a blob properties
// record for the given properties.
func BlobPropertiesRecordSize(p BlobProperties) int {
	return versionFieldSize + PropertiesSize(p) + crcFieldSize
}

// SerializeBlobPropertiesRecord writes a V1 blob properties record into buf.
func SerializeBlobPropertiesRecord(buf *Buffer, p BlobProperties) {
	start := buf.Pos()
	buf.PutUint16(BlobPropertiesVersionV1)
	WriteProperties(buf, p)
	crc := NewCrc32()
	crc.Update(buf.Region(start))
	buf.PutUint64(crc.Value())
}

// DeserializeBlobProperties reads a blob properties record from the stream,
// dispatching on the leading version tag.
func DeserializeBlobProperties(r io.Reader) (BlobProperties, error) {
	stream := recordReader(r, propertiesRecord)
	version, err := stream.ReadUint16()
	if err != nil {
		return BlobProperties{}, err
	}
	decode, ok := blobPropertiesDecoders[version]
	if !ok {
		return BlobProperties{}, errf(ErrUnknownFormatVersion, propertiesRecord,
			"version %d not supported", version)
	}
	return decode(stream)
}

func deserializeBlobPropertiesRecordV1(stream *CrcReader) (BlobProperties, error) {
	p, err := ReadProperties(stream)
	if err != nil {
		return BlobProperties{}, err
	}
	actual := stream.CrcValue()
	expected, err := stream.ReadInt64()
	if err != nil {
		return BlobProperties{}, err
	}
	if uint64(expected) != actual {
		return BlobProperties{}, errf(ErrDataCorrupt, propertiesRecord,
			"crc mismatch: expected %d actual %d", uint64(expected), actual)
	}
	return p, nil
}

// User metadata record V1.
//
//	version(2) | size(4) | content(size) | crc(8)

// UserMetadataRecordSize returns the serialized size of a user metadata
// record holding n content bytes.
func UserMetadataRecordSize(n int) int {
	return versionFieldSize + userMetadataSizeFieldSize + n + crcFieldSize
}

// SerializeUserMetadataRecord writes a V1 user metadata record into buf.
func SerializeUserMetadataRecord(buf *Buffer, userMetadata []byte) {
	start := buf.Pos()
	buf.PutUint16(UserMetadataVersionV1)
	buf.PutInt32(int32(len(userMetadata)))
	buf.PutBytes(userMetadata)
	crc := NewCrc32()
	crc.Update(buf.Region(start))
	buf.PutUint64(crc.Value())
}

// DeserializeUserMetadata reads a user metadata record from the stream,
// dispatching on the leading version tag. The returned slice is an exact-size
// copy owned by the caller.
func DeserializeUserMetadata(r io.Reader) ([]byte, error) {
	stream := recordReader(r, userMetadataRecord)
	version, err := stream.ReadUint16()
	if err != nil {
		return nil, err
	}
	decode, ok := userMetadataDecoders[version]
	if !ok {
		return nil, errf(ErrUnknownFormatVersion, userMetadataRecord,
			"version %d not supported", version)
	}
	return decode(stream)
}

func deserializeUserMetadataRecordV1(stream *CrcReader) ([]byte, error) {
	size, err := stream.ReadInt32()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errf(ErrIO, userMetadataRecord, "invalid declared size %d", size)
	}
	content := make([]byte, size)
	if err := stream.ReadFull(content); err != nil {
		return nil, err
	}
	actual := stream.CrcValue()
	expected, err := stream.ReadInt64()
	if err != nil {
		return nil, err
	}
	if uint64(expected) != actual {
		return nil, errf(ErrDataCorrupt, userMetadataRecord,
			"crc mismatch: expected %d actual %d", uint64(expected), actual)
	}
	return content, nil
}

// Blob record V1.
//
//	version(2) | size(8) | content(size) | crc(8)

// BlobRecordSize returns the serialized size of a blob record holding
// blobSize content bytes.
func BlobRecordSize(blobSize int64) int64 {
	return versionFieldSize + blobSizeFieldSize + blobSize + crcFieldSize
}

// SerializePartialBlobRecord writes only the version and size prefix of a
// blob record. The caller streams the content bytes into the buffer and
// appends the CRC itself, allowing large blobs to bypass intermediate
// copies.
func SerializePartialBlobRecord(buf *Buffer, blobSize int64) {
	buf.PutUint16(BlobVersionV1)
	buf.PutInt64(blobSize)
}

// SerializeBlobRecord writes a complete V1 blob record for content already
// held in memory.
func SerializeBlobRecord(buf *Buffer, content []byte) {
	start := buf.Pos()
	SerializePartialBlobRecord(buf, int64(len(content)))
	buf.PutBytes(content)
	crc := NewCrc32()
	crc.Update(buf.Region(start))
	buf.PutUint64(crc.Value())
}

// BlobOutput is the result of deserializing a blob record: the declared size
// and a lazy reader over exactly that many content bytes. The content is not
// buffered; the caller must consume it before using the underlying stream
// for anything else. The trailing CRC is validated once the content has been
// drained, and a mismatch surfaces as ErrDataCorrupt from Read in place of
// io.EOF.
type BlobOutput struct {
	size    int64
	content io.Reader
}

// Size returns the declared content size.
func (b *BlobOutput) Size() int64 {
	return b.size
}

// Content returns the lazy content reader.
func (b *BlobOutput) Content() io.Reader {
	return b.content
}

// DeserializeBlob reads a blob record from the stream, dispatching on the
// leading version tag. Declared sizes above 2^31-1 are rejected before any
// content is read; the in-memory delivery type is bounded at 32 bits.
func DeserializeBlob(r io.Reader) (*BlobOutput, error) {
	stream := recordReader(r, blobRecord)
	version, err := stream.ReadUint16()
	if err != nil {
		return nil, err
	}
	decode, ok := blobDecoders[version]
	if !ok {
		return nil, errf(ErrUnknownFormatVersion, blobRecord,
			"version %d not supported", version)
	}
	return decode(stream)
}

func deserializeBlobRecordV1(stream *CrcReader) (*BlobOutput, error) {
	size, err := stream.ReadInt64()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errf(ErrIO, blobRecord, "invalid declared size %d", size)
	}
	if size > math.MaxInt32 {
		return nil, errf(ErrIO, blobRecord,
			"declared size %d exceeds the maximum supported size %d", size, math.MaxInt32)
	}
	content := &blobContentReader{stream: stream, remaining: size}
	if size == 0 {
		content.done = content.finalize()
		if content.done != io.EOF {
			return nil, content.done
		}
	}
	return &BlobOutput{size: size, content: content}, nil
}

// blobContentReader delivers the declared number of content bytes, then
// checks the trailing CRC. After the last content byte, Read returns io.EOF
// on a clean trailer or the corruption/stream error otherwise.
type blobContentReader struct {
	stream    *CrcReader
	remaining int64
	done      error
}

func (r *blobContentReader) Read(p []byte) (int, error) {
	if r.done != nil {
		return 0, r.done
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.stream.Read(p)
	r.remaining -= int64(n)
	if err != nil {
		if err == io.EOF {
			err = errf(ErrIO, blobRecord,
				"unexpected end of stream with %d content bytes remaining", r.remaining)
		} else {
			err = ioErr(blobRecord, err)
		}
		r.done = err
		return n, err
	}
	if r.remaining == 0 {
		r.done = r.finalize()
		if r.done != io.EOF {
			return n, r.done
		}
	}
	return n, nil
}

func (r *blobContentReader) finalize() error {
	actual := r.stream.CrcValue()
	expected, err := r.stream.ReadInt64()
	if err != nil {
		return err
	}
	if uint64(expected) != actual {
		return errf(ErrDataCorrupt, blobRecord,
			"crc mismatch: expected %d actual %d", uint64(expected), actual)
	}
	return io.EOF
}

// Delete record V1.
//
//	version(2) | flag(1) | crc(8)
//
// The flag occupies a full byte rather than a bit to leave room for a future
// undelete or richer state encoding.

// DeleteRecordSize returns the serialized size of a delete record.
func DeleteRecordSize() int {
	return versionFieldSize + deleteFieldSize + crcFieldSize
}

// SerializeDeleteRecord writes a V1 delete record into buf.
func SerializeDeleteRecord(buf *Buffer, deleted bool) {
	start := buf.Pos()
	buf.PutUint16(DeleteVersionV1)
	if deleted {
		buf.PutUint8(1)
	} else {
		buf.PutUint8(0)
	}
	crc := NewCrc32()
	crc.Update(buf.Region(start))
	buf.PutUint64(crc.Value())
}

// DeserializeDelete reads a delete record from the stream, dispatching on the
// leading version tag, and returns whether the blob is deleted.
func DeserializeDelete(r io.Reader) (bool, error) {
	stream := recordReader(r, deleteRecord)
	version, err := stream.ReadUint16()
	if err != nil {
		return false, err
	}
	decode, ok := deleteDecoders[version]
	if !ok {
		return false, errf(ErrUnknownFormatVersion, deleteRecord,
			"version %d not supported", version)
	}
	return decode(stream)
}

func deserializeDeleteRecordV1(stream *CrcReader) (bool, error) {
	flag, err := stream.ReadUint8()
	if err != nil {
		return false, err
	}
	actual := stream.CrcValue()
	expected, err := stream.ReadInt64()
	if err != nil {
		return false, err
	}
	if uint64(expected) != actual {
		return false, errf(ErrDataCorrupt, deleteRecord,
			"crc mismatch: expected %d actual %d", uint64(expected), actual)
	}
	if flag > 1 {
		return false, errf(ErrDataCorrupt, deleteRecord, "invalid delete flag %d", flag)
	}
	return flag == 1, nil
}
