// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

// StatsSource reports core state for the health endpoint.
type StatsSource interface {
	Stats() triage.Stats
}

type healthResponse struct {
	Status     string        `json:"status"`
	Uptime     string        `json:"uptime"`
	QueueDepth int           `json:"queue_depth"`
	Triage     *triage.Stats `json:"triage,omitempty"`
}

// Server exposes the Slack webhook and a health check.
type Server struct {
	addr    string
	webhook http.Handler
	stats   StatsSource
	depth   func() int
	started time.Time
	srv     *http.Server
}

func NewServer(addr string, webhook http.Handler, stats StatsSource, queueDepth func() int) *Server {
	s := &Server{
		addr:    addr,
		webhook: webhook,
		stats:   stats,
		depth:   queueDepth,
		started: time.Now(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.webhook != nil {
		mux.Handle("POST /", s.webhook)
		mux.Handle("POST /slack/events", s.webhook)
	}
	mux.HandleFunc("GET /_health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "OK",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.depth != nil {
		resp.QueueDepth = s.depth()
	}
	if s.stats != nil {
		st := s.stats.Stats()
		resp.Triage = &st
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.WarnCF("gateway", "Failed to write health response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	logger.InfoCF("gateway", "HTTP server listening", map[string]interface{}{
		"addr": ln.Addr().String(),
	})
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
