package format

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func serializePutMessageBytes(t *testing.T, props BlobProperties, metadata, content []byte) []byte {
	t.Helper()
	size := PutMessageSize(props, len(metadata), int64(len(content)))
	buf := NewBuffer(make([]byte, size))
	err := SerializePutMessage(buf, props, metadata, int64(len(content)), bytes.NewReader(content))
	if err != nil {
		t.Fatalf("SerializePutMessage failed: %v", err)
	}
	if buf.Remaining() != 0 {
		t.Fatalf("message size arithmetic is off: %d bytes unwritten", buf.Remaining())
	}
	return buf.Bytes()
}

func TestPutMessage_RoundTrip(t *testing.T) {
	props := testProperties()
	metadata := []byte("env=prod")
	content := []byte("the quick brown fox jumps over the lazy dog")

	raw := serializePutMessageBytes(t, props, metadata, content)

	msg, err := ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msg.IsDelete() {
		t.Fatal("put message read back as delete")
	}
	if msg.Properties != props {
		t.Errorf("properties mismatch:\n got  %+v\n want %+v", msg.Properties, props)
	}
	if !bytes.Equal(msg.UserMetadata, metadata) {
		t.Errorf("user metadata mismatch: got %x, want %x", msg.UserMetadata, metadata)
	}
	got, err := io.ReadAll(msg.Blob.Content())
	if err != nil {
		t.Fatalf("reading blob content failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("blob content mismatch")
	}
	if msg.TotalSize() != int64(len(raw)) {
		t.Errorf("TotalSize = %d, want %d", msg.TotalSize(), len(raw))
	}
}

func TestPutMessage_HeaderOffsetsPointAtRecords(t *testing.T) {
	props := testProperties()
	metadata := []byte("m")
	content := []byte("c")

	raw := serializePutMessageBytes(t, props, metadata, content)
	header, err := ParseHeader(raw)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}

	// Each offset must land on a record whose leading version tag is V1,
	// and the layout order is blob properties, user metadata, blob.
	offsets := []int32{header.BlobPropertiesOffset(), header.UserMetadataOffset(), header.BlobOffset()}
	if offsets[0] != int32(HeaderSize()) {
		t.Errorf("blob properties offset = %d, want %d", offsets[0], HeaderSize())
	}
	for i, off := range offsets {
		if off <= 0 || int(off)+2 > len(raw) {
			t.Fatalf("offset %d out of range: %d", i, off)
		}
		if raw[off] != 0x00 || raw[off+1] != 0x01 {
			t.Errorf("offset %d does not point at a V1 record: %x", off, raw[off:off+2])
		}
		if i > 0 && off <= offsets[i-1] {
			t.Errorf("offsets not strictly increasing: %v", offsets)
		}
	}
}

func TestDeleteMessage_RoundTrip(t *testing.T) {
	if DeleteMessageSize() != HeaderSize()+DeleteRecordSize() {
		t.Errorf("DeleteMessageSize = %d", DeleteMessageSize())
	}

	buf := NewBuffer(make([]byte, DeleteMessageSize()))
	if err := SerializeDeleteMessage(buf, true); err != nil {
		t.Fatalf("SerializeDeleteMessage failed: %v", err)
	}

	msg, err := ReadMessage(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if !msg.IsDelete() {
		t.Fatal("delete message read back as put")
	}
	if !msg.Deleted {
		t.Error("deleted flag lost in round trip")
	}
	if msg.Header.MessageSize() != int64(DeleteRecordSize()) {
		t.Errorf("MessageSize = %d, want %d", msg.Header.MessageSize(), DeleteRecordSize())
	}
}

func TestSerializePutMessage_ShortBlobSource(t *testing.T) {
	props := testProperties()
	size := PutMessageSize(props, 0, 10)
	buf := NewBuffer(make([]byte, size))

	err := SerializePutMessage(buf, props, nil, 10, bytes.NewReader([]byte("abc")))
	if err == nil {
		t.Fatal("expected error for short blob source")
	}
	if !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestReadMessage_EmptyStream(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("expected io.EOF at a clean message boundary, got %v", err)
	}
}

func TestReadMessage_TruncatedHeader(t *testing.T) {
	raw := serializePutMessageBytes(t, testProperties(), []byte("m"), []byte("c"))

	_, err := ReadMessage(bytes.NewReader(raw[:HeaderSize()-4]))
	if err == nil {
		t.Fatal("expected error for truncated header")
	}
	if !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestReadMessage_TruncatedPayload(t *testing.T) {
	raw := serializePutMessageBytes(t, testProperties(), []byte("metadata"), []byte("content"))

	msg, err := ReadMessage(bytes.NewReader(raw[:len(raw)-3]))
	if err == nil {
		// The truncation lands in the blob CRC trailer, which is read only
		// once the lazy content is drained; it must surface on the content
		// reader instead.
		_, err = io.ReadAll(msg.Blob.Content())
	}
	if err == nil {
		t.Fatal("expected error for truncated payload")
	}
	if !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestReadMessage_CorruptHeader(t *testing.T) {
	raw := serializePutMessageBytes(t, testProperties(), []byte("m"), []byte("c"))
	raw[4] ^= 0xFF // inside total_size

	_, err := ReadMessage(bytes.NewReader(raw))
	if err == nil {
		t.Fatal("expected corruption error")
	}
	if !errors.Is(err, ErrDataCorrupt) {
		t.Errorf("expected ErrDataCorrupt, got %v", err)
	}
}

func TestReadMessage_SequentialMessages(t *testing.T) {
	var log bytes.Buffer

	first := serializePutMessageBytes(t, testProperties(), []byte("one"), []byte("first blob"))
	log.Write(first)

	deleteBuf := NewBuffer(make([]byte, DeleteMessageSize()))
	if err := SerializeDeleteMessage(deleteBuf, true); err != nil {
		t.Fatalf("SerializeDeleteMessage failed: %v", err)
	}
	log.Write(deleteBuf.Bytes())

	reader := bytes.NewReader(log.Bytes())

	msg, err := ReadMessage(reader)
	if err != nil {
		t.Fatalf("reading first message: %v", err)
	}
	if _, err := io.ReadAll(msg.Blob.Content()); err != nil {
		t.Fatalf("draining first blob: %v", err)
	}

	msg, err = ReadMessage(reader)
	if err != nil {
		t.Fatalf("reading second message: %v", err)
	}
	if !msg.IsDelete() || !msg.Deleted {
		t.Error("second message should be a delete tombstone")
	}

	if _, err := ReadMessage(reader); err != io.EOF {
		t.Errorf("expected io.EOF after last message, got %v", err)
	}
}
