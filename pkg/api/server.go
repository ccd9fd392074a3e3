package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the chi router for the server: access logging, panic
// recovery, CORS, an unauthenticated metrics endpoint, and the API-key
// protected blob routes.
func Router(server *Server, metrics *Metrics) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{headerBlobID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(server.config.APIKey))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))

		r.Put("/blobs", metrics.InstrumentHandler("PUT", "/api/v1/blobs", server.handlePutBlob))
		r.Get("/blobs/{id}", metrics.InstrumentHandler("GET", "/api/v1/blobs/{id}", server.handleGetBlob))
		r.Get("/blobs/{id}/metadata", metrics.InstrumentHandler("GET", "/api/v1/blobs/{id}/metadata", server.handleGetBlobMetadata))
		r.Delete("/blobs/{id}", metrics.InstrumentHandler("DELETE", "/api/v1/blobs/{id}", server.handleDeleteBlob))

		r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))
	})

	return r
}

// StartServer starts the HTTP (or HTTPS, when a TLS configuration is
// present) server with all routes configured. Blocks until the listener
// fails. Pass the Metrics already wired into the store's corruption sink,
// or nil to register a fresh set.
func StartServer(store IBlobStore, config ServerConfig, metrics *Metrics) error {
	if metrics == nil {
		metrics = NewMetrics()
	}
	server := NewServer(store, config, metrics)
	router := Router(server, metrics)

	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	httpServer := &http.Server{
		Addr:      addr,
		Handler:   router,
		TLSConfig: config.TLSConfig,
	}

	if config.TLSConfig != nil {
		// Certificates come from the TLS configuration itself.
		return httpServer.ListenAndServeTLS("", "")
	}
	return httpServer.ListenAndServe()
}
