// Package server exposes the compressor over HTTP.
//
// Routes:
//
//	POST /api/compress?format=raw|container&name=<source>   compress the request body
//	GET  /api/jobs?limit=N                                  recent job records
//	GET  /api/jobs/{id}                                     one job record
//	GET  /api/stats                                         pool, cache and ledger counters
//	GET  /api/ws                                            live stage and job events
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/common/logging"
	"github.com/TheEntropyCollective/huffpool/pkg/core/compressor"
	"github.com/TheEntropyCollective/huffpool/pkg/storage/cache"
	"github.com/TheEntropyCollective/huffpool/pkg/storage/jobs"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Response headers set on /api/compress.
const (
	HeaderJobID      = "X-Huffpool-Job"
	HeaderBitLength  = "X-Huffpool-Bit-Length"
	HeaderInputBytes = "X-Huffpool-Input-Bytes"
	HeaderCache      = "X-Huffpool-Cache"
)

// Config holds HTTP server settings.
type Config struct {
	Addr          string
	MaxBodyBytes  int64
	DefaultFormat compressor.Format
}

// APIResponse wraps every JSON reply.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Server serves compression requests. The result cache is optional.
type Server struct {
	config     Config
	compressor *compressor.Compressor
	store      jobs.Store
	cache      *cache.ResultCache
	logger     *logging.Logger

	router     *mux.Router
	wsUpgrader websocket.Upgrader
	hub        *hub
}

// New creates a server. resultCache may be nil to disable caching.
func New(config Config, comp *compressor.Compressor, store jobs.Store, resultCache *cache.ResultCache, logger *logging.Logger) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 64 << 20
	}
	if config.DefaultFormat == "" {
		config.DefaultFormat = compressor.FormatRaw
	}
	if logger == nil {
		logger = logging.GetGlobalLogger().WithComponent("server")
	}

	s := &Server{
		config:     config,
		compressor: comp,
		store:      store,
		cache:      resultCache,
		logger:     logger,
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		hub: newHub(),
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/ws", s.handleWebSocket)
	s.router = router

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{
			"addr": s.config.Addr,
		})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.hub.closeAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}
