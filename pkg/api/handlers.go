package api

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/munin/pkg/format"
	"github.com/ssargent/munin/pkg/store"
)

// Request headers carrying blob properties on put.
const (
	headerServiceID    = "X-Munin-Service-Id"
	headerOwnerID      = "X-Munin-Owner-Id"
	headerTTL          = "X-Munin-Ttl-Seconds"
	headerPrivate      = "X-Munin-Private"
	headerUserMetadata = "X-Munin-User-Metadata"
	headerBlobID       = "X-Munin-Blob-Id"
)

// Server holds the API server state
type Server struct {
	store   IBlobStore
	config  ServerConfig
	metrics *Metrics
}

// NewServer creates a new API server
func NewServer(store IBlobStore, config ServerConfig, metrics *Metrics) *Server {
	return &Server{
		store:   store,
		config:  config,
		metrics: metrics,
	}
}

func (s *Server) recordOperation(operation string, success bool, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(operation, success, time.Since(start))
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handlePutBlob stores the request body as a new blob and returns its ID.
func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ttl := format.InfiniteTTL
	if raw := r.Header.Get(headerTTL); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.recordOperation("put", false, start)
			sendError(w, fmt.Sprintf("Invalid %s header", headerTTL), http.StatusBadRequest)
			return
		}
		ttl = parsed
	}
	private := r.Header.Get(headerPrivate) == "true"

	content, err := io.ReadAll(r.Body)
	if err != nil {
		s.recordOperation("put", false, start)
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	props := format.NewBlobProperties(int64(len(content)),
		r.Header.Get(headerServiceID),
		r.Header.Get(headerOwnerID),
		r.Header.Get("Content-Type"),
		ttl, private)

	id, err := s.store.Put(props, []byte(r.Header.Get(headerUserMetadata)),
		int64(len(content)), bytes.NewReader(content))
	if err != nil {
		s.recordOperation("put", false, start)
		sendError(w, fmt.Sprintf("Failed to store blob: %v", err), http.StatusInternalServerError)
		return
	}

	s.recordOperation("put", true, start)
	if s.metrics != nil {
		s.metrics.RecordBlobBytesIn(int64(len(content)))
		stats := s.store.Stats()
		s.metrics.UpdateStoreStats(stats.Blobs, stats.DataSize)
	}
	sendSuccess(w, map[string]string{"id": id.String()})
}

func (s *Server) blobID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := ksuid.Parse(raw)
	if err != nil {
		sendError(w, fmt.Sprintf("Invalid blob id %q", raw), http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch err {
	case store.ErrBlobNotFound:
		sendError(w, "Blob not found", http.StatusNotFound)
	case store.ErrBlobDeleted:
		sendError(w, "Blob is deleted", http.StatusGone)
	case store.ErrCorruption:
		sendError(w, "Blob data is corrupt", http.StatusInternalServerError)
	default:
		sendError(w, fmt.Sprintf("Store operation failed: %v", err), http.StatusInternalServerError)
	}
}

// handleGetBlob streams the blob content, with its properties echoed as
// response headers.
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := s.blobID(w, r)
	if !ok {
		s.recordOperation("get", false, start)
		return
	}

	msg, err := s.store.Get(id)
	if err != nil {
		s.recordOperation("get", false, start)
		s.sendStoreError(w, err)
		return
	}
	defer msg.Close()

	props := msg.Message.Properties
	if props.ContentType != "" {
		w.Header().Set("Content-Type", props.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Length", strconv.FormatInt(msg.Message.Blob.Size(), 10))
	w.Header().Set(headerBlobID, id.String())
	if props.ServiceID != "" {
		w.Header().Set(headerServiceID, props.ServiceID)
	}

	n, err := io.Copy(w, msg.Message.Blob.Content())
	if err != nil {
		// Headers are gone; all that is left is to cut the connection and
		// account for the failure.
		s.recordOperation("get", false, start)
		return
	}

	s.recordOperation("get", true, start)
	if s.metrics != nil {
		s.metrics.RecordBlobBytesOut(n)
	}
}

// handleGetBlobMetadata returns the blob properties and user metadata
// without the content.
func (s *Server) handleGetBlobMetadata(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := s.blobID(w, r)
	if !ok {
		s.recordOperation("metadata", false, start)
		return
	}

	props, userMetadata, err := s.store.GetProperties(id)
	if err != nil {
		s.recordOperation("metadata", false, start)
		s.sendStoreError(w, err)
		return
	}

	s.recordOperation("metadata", true, start)
	sendSuccess(w, BlobMetadataResponse{
		ID:             id.String(),
		BlobSize:       props.BlobSize,
		ServiceID:      props.ServiceID,
		OwnerID:        props.OwnerID,
		ContentType:    props.ContentType,
		TTLSeconds:     props.TTLSeconds,
		Private:        props.Private,
		CreationTimeMs: props.CreationTimeMs,
		UserMetadata:   base64.StdEncoding.EncodeToString(userMetadata),
	})
}

// handleDeleteBlob appends a delete tombstone for the blob.
func (s *Server) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := s.blobID(w, r)
	if !ok {
		s.recordOperation("delete", false, start)
		return
	}

	if err := s.store.Delete(id); err != nil {
		s.recordOperation("delete", false, start)
		s.sendStoreError(w, err)
		return
	}

	s.recordOperation("delete", true, start)
	if s.metrics != nil {
		stats := s.store.Stats()
		s.metrics.UpdateStoreStats(stats.Blobs, stats.DataSize)
	}
	sendSuccess(w, map[string]string{"id": id.String(), "status": "deleted"})
}

// handleStats returns store statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	if s.metrics != nil {
		s.metrics.UpdateStoreStats(stats.Blobs, stats.DataSize)
	}
	sendSuccess(w, map[string]interface{}{
		"blobs":     stats.Blobs,
		"data_size": stats.DataSize,
	})
}
