package api

import (
	"crypto/tls"
	"io"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/munin/pkg/format"
	"github.com/ssargent/munin/pkg/store"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BlobMetadataResponse is returned by the metadata endpoint.
type BlobMetadataResponse struct {
	ID             string `json:"id"`
	BlobSize       int64  `json:"blob_size"`
	ServiceID      string `json:"service_id,omitempty"`
	OwnerID        string `json:"owner_id,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	TTLSeconds     int64  `json:"ttl_seconds"`
	Private        bool   `json:"private"`
	CreationTimeMs int64  `json:"creation_time_ms"`
	UserMetadata   string `json:"user_metadata,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind      string
	Port      int
	APIKey    string
	TLSConfig *tls.Config // nil serves plain HTTP
}

// IBlobStore defines the interface for the blob store operations
type IBlobStore interface {
	Put(props format.BlobProperties, userMetadata []byte, blobSize int64, blob io.Reader) (ksuid.KSUID, error)
	Get(id ksuid.KSUID) (*store.StoredMessage, error)
	GetProperties(id ksuid.KSUID) (format.BlobProperties, []byte, error)
	Delete(id ksuid.KSUID) error
	Stats() *store.StoreStats
}
