package format

import (
	"bytes"
	"errors"
	"testing"
)

func serializeHeaderBytes(t *testing.T, total int64, props, del, meta, blob int32) []byte {
	t.Helper()
	buf := NewBuffer(make([]byte, HeaderSize()))
	if err := SerializeHeader(buf, total, props, del, meta, blob); err != nil {
		t.Fatalf("SerializeHeader failed: %v", err)
	}
	return buf.Written()
}

func TestHeader_Size(t *testing.T) {
	// version(2) + total_size(8) + 4 relative offsets(16) + crc(8)
	if HeaderSize() != 34 {
		t.Errorf("HeaderSize = %d, want 34", HeaderSize())
	}
}

func TestHeader_PutMessageRoundTrip(t *testing.T) {
	raw := serializeHeaderBytes(t, 100, 38, InvalidRelativeOffset, 58, 72)

	// Fixed layout before the CRC trailer, big-endian.
	want := []byte{
		0x00, 0x01, // version
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x64, // total size 100
		0x00, 0x00, 0x00, 0x26, // blob properties offset 38
		0xFF, 0xFF, 0xFF, 0xFF, // delete offset -1
		0x00, 0x00, 0x00, 0x3A, // user metadata offset 58
		0x00, 0x00, 0x00, 0x48, // blob offset 72
	}
	if !bytes.Equal(raw[:len(want)], want) {
		t.Errorf("serialized header body mismatch:\n got  %x\n want %x", raw[:len(want)], want)
	}

	header, err := ParseHeader(raw)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if err := header.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if header.Version() != MessageHeaderVersionV1 {
		t.Errorf("Version = %d, want %d", header.Version(), MessageHeaderVersionV1)
	}
	if header.MessageSize() != 100 {
		t.Errorf("MessageSize = %d, want 100", header.MessageSize())
	}
	if header.BlobPropertiesOffset() != 38 {
		t.Errorf("BlobPropertiesOffset = %d, want 38", header.BlobPropertiesOffset())
	}
	if header.DeleteOffset() != InvalidRelativeOffset {
		t.Errorf("DeleteOffset = %d, want %d", header.DeleteOffset(), InvalidRelativeOffset)
	}
	if header.UserMetadataOffset() != 58 {
		t.Errorf("UserMetadataOffset = %d, want 58", header.UserMetadataOffset())
	}
	if header.BlobOffset() != 72 {
		t.Errorf("BlobOffset = %d, want 72", header.BlobOffset())
	}
	if !header.IsPutMessage() || header.IsDeleteMessage() {
		t.Error("header should parse as a put message")
	}
}

func TestHeader_DeleteMessageRoundTrip(t *testing.T) {
	raw := serializeHeaderBytes(t, 11, InvalidRelativeOffset, 38, InvalidRelativeOffset, InvalidRelativeOffset)

	header, err := ParseHeader(raw)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if err := header.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !header.IsDeleteMessage() || header.IsPutMessage() {
		t.Error("header should parse as a delete message")
	}
	if header.DeleteOffset() != 38 {
		t.Errorf("DeleteOffset = %d, want 38", header.DeleteOffset())
	}
}

func TestHeader_ShapeExclusivity(t *testing.T) {
	inv := InvalidRelativeOffset

	testCases := []struct {
		name  string
		total int64
		props int32
		del   int32
		meta  int32
		blob  int32
		ok    bool
	}{
		{"valid put", 100, 38, inv, 58, 72, true},
		{"valid delete", 11, inv, 38, inv, inv, true},
		{"zero total size", 0, 38, inv, 58, 72, false},
		{"negative total size", -5, inv, 38, inv, inv, false},
		{"put and delete mixed", 100, 38, 50, 58, 72, false},
		{"put missing user metadata", 100, 38, inv, inv, 72, false},
		{"put missing blob", 100, 38, inv, 58, inv, false},
		{"put with zero user metadata offset", 100, 38, inv, 0, 72, false},
		{"put with zero blob offset", 100, 38, inv, 58, 0, false},
		{"delete with blob properties", 100, 38, 50, inv, inv, false},
		{"delete with user metadata", 100, inv, 38, 58, inv, false},
		{"delete with blob", 100, inv, 38, inv, 72, false},
		{"all absent", 100, inv, inv, inv, inv, false},
		{"all zero offsets", 100, 0, 0, 0, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := NewBuffer(make([]byte, HeaderSize()))
			err := SerializeHeader(buf, tc.total, tc.props, tc.del, tc.meta, tc.blob)
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected HeaderConstraintError, got success")
				}
				if !errors.Is(err, ErrHeaderConstraint) {
					t.Errorf("expected ErrHeaderConstraint, got %v", err)
				}
			}
		})
	}
}

func TestHeader_VerifyDetectsCorruption(t *testing.T) {
	raw := serializeHeaderBytes(t, 100, 38, InvalidRelativeOffset, 58, 72)

	for i := 0; i < len(raw); i++ {
		corrupted := make([]byte, len(raw))
		copy(corrupted, raw)
		corrupted[i] ^= 0x01

		header, err := ParseHeader(corrupted)
		if err != nil {
			// Flipping a version byte is rejected at parse time.
			if !errors.Is(err, ErrUnknownFormatVersion) {
				t.Errorf("byte %d: unexpected parse error %v", i, err)
			}
			continue
		}
		if err := header.Verify(); err == nil {
			t.Errorf("byte %d: corruption not detected", i)
		}
	}
}

func TestHeader_VerifyRechecksConstraints(t *testing.T) {
	// A header whose CRC is valid but whose offsets violate shape
	// exclusivity: forge it by writing fields directly and appending a
	// matching CRC.
	buf := NewBuffer(make([]byte, HeaderSize()))
	buf.PutUint16(MessageHeaderVersionV1)
	buf.PutInt64(100)
	buf.PutInt32(38) // blob properties
	buf.PutInt32(50) // delete: illegal alongside blob properties
	buf.PutInt32(58)
	buf.PutInt32(72)
	crc := NewCrc32()
	crc.Update(buf.Written())
	buf.PutUint64(crc.Value())

	header, err := ParseHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	err = header.Verify()
	if err == nil {
		t.Fatal("expected constraint violation")
	}
	if !errors.Is(err, ErrHeaderConstraint) {
		t.Errorf("expected ErrHeaderConstraint, got %v", err)
	}
}

func TestHeader_ParseUnknownVersion(t *testing.T) {
	raw := serializeHeaderBytes(t, 100, 38, InvalidRelativeOffset, 58, 72)
	raw[0] = 0x00
	raw[1] = 0x07

	_, err := ParseHeader(raw)
	if err == nil {
		t.Fatal("expected version error")
	}
	if !errors.Is(err, ErrUnknownFormatVersion) {
		t.Errorf("expected ErrUnknownFormatVersion, got %v", err)
	}
}

func TestHeader_ParseShortBuffer(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize()-1))
	if err == nil {
		t.Fatal("expected error for short buffer")
	}
	if !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}
