// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/pipeline"
	"github.com/liamnap/RatedStats-Achiev/internal/ratelimit"
)

// Info identifies the run the listener reports on.
type Info struct {
	Region string `json:"region"`
	Mode   string `json:"mode"`
}

// ProgressSource yields the point-in-time counters /status reports.
// *pipeline.Progress satisfies it.
type ProgressSource interface {
	Snapshot() pipeline.ProgressSnapshot
}

// Server is the ops HTTP listener. It implements suture.Service; each
// Serve call builds a fresh http.Server because a shut-down server cannot
// be reused.
type Server struct {
	addr            string
	info            Info
	progress        ProgressSource
	limiters        []*ratelimit.Limiter
	startTime       time.Time
	shutdownTimeout time.Duration
}

// NewServer creates the listener. The limiters appear on /status in the
// order given.
func NewServer(addr string, info Info, progress ProgressSource, limiters ...*ratelimit.Limiter) *Server {
	return &Server{
		addr:            addr,
		info:            info,
		progress:        progress,
		limiters:        limiters,
		startTime:       time.Now(),
		shutdownTimeout: 10 * time.Second,
	}
}

// Handler builds the route table. Exposed separately so tests can drive
// the handlers through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Serve runs the listener until ctx is cancelled, then shuts it down
// gracefully. It starts ListenAndServe in a goroutine and waits on either
// the context or a server failure; http.ErrServerClosed is the expected
// result of Shutdown and is not an error.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logging.Info().Str("addr", s.addr).Msg("[OPS] Listener started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops listener failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The run context is already cancelled; shutdown gets its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops listener shutdown: %w", err)
		}
		<-errCh
		logging.Info().Str("addr", s.addr).Msg("[OPS] Listener stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer; suture uses it to name the service in
// supervisor events.
func (s *Server) String() string {
	return "ops-listener"
}

type limiterStatus struct {
	Name     string  `json:"name"`
	Tokens   float64 `json:"tokens"`
	Capacity float64 `json:"capacity"`
}

type statusPayload struct {
	Region        string                    `json:"region"`
	Mode          string                    `json:"mode"`
	UptimeSeconds float64                   `json:"uptime_seconds"`
	Progress      pipeline.ProgressSnapshot `json:"progress"`
	Limiters      []limiterStatus           `json:"limiters"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := statusPayload{
		Region:        s.info.Region,
		Mode:          s.info.Mode,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Limiters:      make([]limiterStatus, 0, len(s.limiters)),
	}
	if s.progress != nil {
		payload.Progress = s.progress.Snapshot()
	}
	for _, l := range s.limiters {
		payload.Limiters = append(payload.Limiters, limiterStatus{
			Name:     l.Name(),
			Tokens:   l.Tokens(),
			Capacity: l.Capacity(),
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("[OPS] Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("[OPS] Failed to write JSON response")
	}
}
