// Package format implements the on-disk message record format of the Munin
// blob store.
//
// Every stored object is a self-describing message: a fixed-width header
// followed by one or more typed sub-records, each carrying its own version
// tag and CRC trailer. A message has exactly one of two shapes:
//
//   - put-message:    header | blob properties | user metadata | blob
//   - delete-message: header | delete tombstone
//
// # Message header (V1)
//
//	version(2) | total_size(8) | blob_properties_off(4) | delete_off(4)
//	 | user_metadata_off(4) | blob_off(4) | crc(8)
//
// total_size is the payload size following the header. The four relative
// offsets locate sub-records from the start of the message; -1 marks a
// sub-record as absent. The header enforces shape exclusivity: a put-message
// sets the blob properties, user metadata and blob offsets and no delete
// offset; a delete-message sets only the delete offset. Any other
// combination is rejected, on write and on read.
//
// # Sub-records (V1)
//
//	blob properties: version(2) | properties(variable)      | crc(8)
//	user metadata:   version(2) | size(4) | content(size)   | crc(8)
//	blob:            version(2) | size(8) | content(size)   | crc(8)
//	delete:          version(2) | flag(1)                    | crc(8)
//
// All integers are big-endian. Every CRC is an IEEE CRC-32 stored in 8 bytes
// (upper 32 bits zero) and covers every preceding byte of that record only;
// CRC domains never span records.
//
// # Reading
//
// Deserializers consume a CrcReader, which folds every byte read into a
// running checksum, so the expected CRC is available the moment the payload
// has been consumed. The leading version tag of each record selects the
// decoder generation through the dispatch tables in registry.go; unknown
// versions fail with ErrUnknownFormatVersion, corrupt records with
// ErrDataCorrupt. Blob content is never buffered: DeserializeBlob hands back
// a lazy reader bounded at the declared size, and the CRC is checked when
// the content has been drained.
//
// # Writing
//
// Producers pre-size a Buffer with PutMessageSize or DeleteMessageSize and
// serialize once; messages are immutable after that. The codecs are pure
// transformations with no shared state; failures surface as *FormatError
// and are never retried or defaulted.
package format
