package format

import (
	"encoding/binary"
	"fmt"
)

// Buffer is a positioned big-endian writer over a caller-supplied byte slice.
// A message is serialized into a buffer pre-sized to HeaderSize + totalSize
// and is immutable thereafter. Put calls panic if the slice has insufficient
// remaining capacity; sizing is the producer's contract, not an I/O
// condition.
type Buffer struct {
	buf []byte
	pos int
}

// NewBuffer wraps b with the position at 0.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Pos returns the current write position.
func (b *Buffer) Pos() int {
	return b.pos
}

// Remaining returns the writable capacity left.
func (b *Buffer) Remaining() int {
	return len(b.buf) - b.pos
}

// Bytes returns the underlying slice.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Written returns the prefix written so far.
func (b *Buffer) Written() []byte {
	return b.buf[:b.pos]
}

// Region returns the bytes written between start and the current position.
// Record codecs use it to compute a CRC over exactly the record they wrote.
func (b *Buffer) Region(start int) []byte {
	return b.buf[start:b.pos]
}

func (b *Buffer) require(n int) {
	if b.Remaining() < n {
		panic(fmt.Sprintf("format: buffer overflow: need %d bytes, have %d", n, b.Remaining()))
	}
}

// PutUint8 writes one byte.
func (b *Buffer) PutUint8(v uint8) {
	b.require(1)
	b.buf[b.pos] = v
	b.pos++
}

// PutUint16 writes a big-endian unsigned short.
func (b *Buffer) PutUint16(v uint16) {
	b.require(2)
	binary.BigEndian.PutUint16(b.buf[b.pos:], v)
	b.pos += 2
}

// PutInt32 writes a big-endian signed 32-bit integer.
func (b *Buffer) PutInt32(v int32) {
	b.require(4)
	binary.BigEndian.PutUint32(b.buf[b.pos:], uint32(v))
	b.pos += 4
}

// PutInt64 writes a big-endian signed 64-bit integer.
func (b *Buffer) PutInt64(v int64) {
	b.require(8)
	binary.BigEndian.PutUint64(b.buf[b.pos:], uint64(v))
	b.pos += 8
}

// PutUint64 writes a big-endian unsigned 64-bit integer. CRC trailers are
// written through this.
func (b *Buffer) PutUint64(v uint64) {
	b.require(8)
	binary.BigEndian.PutUint64(b.buf[b.pos:], v)
	b.pos += 8
}

// PutBytes copies p into the buffer.
func (b *Buffer) PutBytes(p []byte) {
	b.require(len(p))
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
}

// Advance moves the position forward over n bytes the caller has filled in
// directly, e.g. streamed blob content.
func (b *Buffer) Advance(n int) {
	b.require(n)
	b.pos += n
}

// Slice returns the next n bytes of capacity without advancing. The caller
// fills them and then calls Advance(n).
func (b *Buffer) Slice(n int) []byte {
	b.require(n)
	return b.buf[b.pos : b.pos+n]
}
