package format

import "hash/crc32"

// Crc32 accumulates an IEEE CRC-32 over a sequence of byte slices. The value
// is carried in a uint64 because the on-disk CRC field is 8 bytes wide; the
// upper 32 bits are always zero. Not safe for concurrent use; each codec call
// uses a fresh accumulator.
type Crc32 struct {
	crc uint32
}

// NewCrc32 returns a fresh accumulator.
func NewCrc32() *Crc32 {
	return &Crc32{}
}

// Update folds p into the running checksum. Updating with one large slice or
// an equivalent sequence of smaller slices yields the same value.
func (c *Crc32) Update(p []byte) {
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p)
}

// Value returns the checksum of everything observed so far.
func (c *Crc32) Value() uint64 {
	return uint64(c.crc)
}
