package format

// Dispatch tables for record deserialization, keyed on the 2-byte version
// tag read through the framed stream. Adding a new record generation is
// additive: implement the decoder and register it here. Nothing outside this
// file switches on versions.
var (
	blobPropertiesDecoders = map[uint16]func(*CrcReader) (BlobProperties, error){
		BlobPropertiesVersionV1: deserializeBlobPropertiesRecordV1,
	}

	userMetadataDecoders = map[uint16]func(*CrcReader) ([]byte, error){
		UserMetadataVersionV1: deserializeUserMetadataRecordV1,
	}

	blobDecoders = map[uint16]func(*CrcReader) (*BlobOutput, error){
		BlobVersionV1: deserializeBlobRecordV1,
	}

	deleteDecoders = map[uint16]func(*CrcReader) (bool, error){
		DeleteVersionV1: deserializeDeleteRecordV1,
	}
)
