package format

import (
	"encoding/binary"
	"io"
)

// CrcReader wraps a byte stream and feeds every byte delivered to the caller
// through a CRC-32 accumulator. A record deserializer consumes the payload,
// samples CrcValue, then reads the trailing 8-byte CRC field and compares.
//
// The reader is positioned at the start of exactly one record: the CRC domain
// of each record is independent, so every record gets a fresh CrcReader.
type CrcReader struct {
	r       io.Reader
	crc     *Crc32
	record  string
	scratch [8]byte
}

// NewCrcReader wraps r with a fresh accumulator.
func NewCrcReader(r io.Reader) *CrcReader {
	return &CrcReader{r: r, crc: NewCrc32(), record: "stream"}
}

// recordReader is NewCrcReader with the record kind stamped into errors.
func recordReader(r io.Reader, record string) *CrcReader {
	cr := NewCrcReader(r)
	cr.record = record
	return cr
}

// Read implements io.Reader. Bytes read are folded into the checksum.
func (cr *CrcReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.crc.Update(p[:n])
	}
	return n, err
}

// CrcValue returns the checksum of all bytes delivered so far without
// consuming further input.
func (cr *CrcReader) CrcValue() uint64 {
	return cr.crc.Value()
}

// ReadFull fills p from the stream, failing on truncation.
func (cr *CrcReader) ReadFull(p []byte) error {
	if _, err := io.ReadFull(cr, p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errf(ErrIO, cr.record, "unexpected end of stream reading %d bytes", len(p))
		}
		return ioErr(cr.record, err)
	}
	return nil
}

// ReadUint8 reads a single byte.
func (cr *CrcReader) ReadUint8() (uint8, error) {
	b := cr.scratch[:1]
	if err := cr.ReadFull(b); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian unsigned short.
func (cr *CrcReader) ReadUint16() (uint16, error) {
	b := cr.scratch[:2]
	if err := cr.ReadFull(b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadInt32 reads a big-endian signed 32-bit integer.
func (cr *CrcReader) ReadInt32() (int32, error) {
	b := cr.scratch[:4]
	if err := cr.ReadFull(b); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadInt64 reads a big-endian signed 64-bit integer.
func (cr *CrcReader) ReadInt64() (int64, error) {
	b := cr.scratch[:8]
	if err := cr.ReadFull(b); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
