// Package server exposes the mention ledger's read operations over HTTP
// for display layers.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/greyotoc/tickerwatch/internal/store"
)

// Server provides the read-only HTTP API.
type Server struct {
	store store.Store
	port  int
}

// New creates a new HTTP server.
func New(s store.Store, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{store: s, port: port}
}

// Handler returns the API routes. Split out from ListenAndServe so tests
// can drive the mux directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/ranked", s.handleRanked)
	mux.HandleFunc("/api/v1/mentions", s.handleMentions)
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("tickerwatch server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRanked serves tickers ordered by mention count since a unix
// timestamp (default 0 = all time).
func (s *Server) handleRanked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be a unix timestamp"})
			return
		}
		since = parsed
	}

	ranked, err := s.store.RankedByMentionCount(r.Context(), since)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit < len(ranked) {
			ranked = ranked[:limit]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  ranked,
		"count": len(ranked),
	})
}

// handleMentions serves every recorded mention of one ticker, newest first.
func (s *Server) handleMentions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticker is required"})
		return
	}

	mentions, err := s.store.MentionsForTicker(r.Context(), ticker)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  mentions,
		"count": len(mentions),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
