package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/common/workers"
	"github.com/TheEntropyCollective/huffpool/pkg/core/compressor"
	"github.com/TheEntropyCollective/huffpool/pkg/core/container"
	"github.com/TheEntropyCollective/huffpool/pkg/storage/cache"
	"github.com/TheEntropyCollective/huffpool/pkg/storage/jobs"
	"github.com/gorilla/mux"
)

// StatsView is the payload of GET /api/stats.
type StatsView struct {
	Workers   int               `json:"workers"`
	Pool      workers.PoolStats `json:"pool"`
	Jobs      int64             `json:"jobs"`
	Cache     *cache.Stats      `json:"cache,omitempty"`
	CacheRate float64           `json:"cache_hit_rate"`
	Clients   int               `json:"ws_clients"`
}

func (s *Server) handleCompress(wr http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format := s.config.DefaultFormat
	if f := query.Get("format"); f != "" {
		parsed, err := compressor.ParseFormat(f)
		if err != nil {
			sendError(wr, err, http.StatusBadRequest)
			return
		}
		format = parsed
	}

	source := query.Get("name")
	if source == "" {
		source = "http"
	}

	input, err := io.ReadAll(http.MaxBytesReader(wr, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(wr, fmt.Errorf("request body exceeds %d bytes", s.config.MaxBodyBytes), http.StatusRequestEntityTooLarge)
			return
		}
		sendError(wr, fmt.Errorf("failed to read request body: %w", err), http.StatusBadRequest)
		return
	}

	record := jobs.NewRecord(source)
	record.InputBytes = int64(len(input))
	record.Format = string(format)
	digest := container.Sum(input)
	record.InputDigest = hex.EncodeToString(digest[:])
	key := cache.Key(digest[:], string(format))

	var output []byte
	if entry, ok := s.lookupCache(key); ok {
		output = entry.Output
		record.CacheHit = true
		record.BitLength = entry.BitLength
		record.Symbols = entry.Symbols
		wr.Header().Set(HeaderCache, "hit")
	} else {
		ctx := compressor.ContextWithTimer(r.Context(), s.hub.stageTimer(record.ID))
		out, result, err := s.compressor.CompressBytes(ctx, input, format)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, workers.ErrPoolClosed) {
				status = http.StatusServiceUnavailable
			}
			s.logger.Error("Compression failed", map[string]interface{}{
				"job_id": record.ID,
				"error":  err.Error(),
			})
			sendError(wr, err, status)
			return
		}

		output = out
		record.BitLength = result.Stream.Bits
		record.Symbols = result.Codes.Symbols()
		record.Workers = result.Workers
		for stage, d := range result.Stages {
			record.Stages[string(stage)] = d
		}

		if s.cache != nil {
			s.cache.Store(key, &cache.Entry{
				JobID:      record.ID,
				Format:     string(format),
				Output:     output,
				BitLength:  record.BitLength,
				Symbols:    record.Symbols,
				InputBytes: len(input),
			})
			wr.Header().Set(HeaderCache, "miss")
		}
	}
	record.OutputBytes = int64(len(output))

	if err := s.store.Save(r.Context(), record); err != nil {
		s.logger.Warn("Failed to save job record", map[string]interface{}{
			"job_id": record.ID,
			"error":  err.Error(),
		})
	}
	s.hub.broadcast(Event{Type: "job", Data: record})

	wr.Header().Set("Content-Type", "application/octet-stream")
	wr.Header().Set("Content-Length", strconv.Itoa(len(output)))
	wr.Header().Set(HeaderJobID, record.ID)
	wr.Header().Set(HeaderBitLength, strconv.FormatUint(record.BitLength, 10))
	wr.Header().Set(HeaderInputBytes, strconv.Itoa(len(input)))
	wr.WriteHeader(http.StatusOK)
	wr.Write(output)
}

func (s *Server) lookupCache(key string) (*cache.Entry, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, err := s.cache.Get(key)
	if err != nil {
		return nil, false
	}
	return entry, true
}

func (s *Server) handleListJobs(wr http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			sendError(wr, fmt.Errorf("invalid limit: %q", l), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		sendError(wr, err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*jobs.Record{}
	}

	sendJSON(wr, APIResponse{Success: true, Data: records})
}

func (s *Server) handleGetJob(wr http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	record, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			sendError(wr, err, http.StatusNotFound)
			return
		}
		sendError(wr, err, http.StatusInternalServerError)
		return
	}

	sendJSON(wr, APIResponse{Success: true, Data: record})
}

func (s *Server) handleStats(wr http.ResponseWriter, r *http.Request) {
	stats, err := s.stats(r)
	if err != nil {
		sendError(wr, err, http.StatusInternalServerError)
		return
	}
	sendJSON(wr, APIResponse{Success: true, Data: stats})
}

func (s *Server) stats(r *http.Request) (*StatsView, error) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		return nil, err
	}

	view := &StatsView{
		Workers: s.compressor.Workers(),
		Pool:    s.compressor.PoolStats(),
		Jobs:    count,
		Clients: s.hub.count(),
	}
	if s.cache != nil {
		view.Cache = s.cache.GetStats()
		view.CacheRate = view.Cache.HitRate()
	}
	return view, nil
}

// WebSocket handling

func (s *Server) handleWebSocket(wr http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(wr, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer conn.Close()

	events := s.hub.add(conn)
	defer s.hub.remove(conn)

	// Initial stats tell the client it is registered.
	if stats, err := s.stats(r); err == nil {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(Event{Type: "stats", Data: stats}); err != nil {
			return
		}
	}

	go func() {
		for event := range events {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	// Reads only detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
