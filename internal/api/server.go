// Package api serves schedules and now/next lookups over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/iptvguide/internal/guide"
)

// PlaylistCounter reports how many local playlist channels are loaded.
type PlaylistCounter interface {
	Count(ctx context.Context) (int, error)
}

type Server struct {
	Addr     string // default :3001
	Guide    *guide.Service
	Playlist PlaylistCounter     // optional
	Gatherer prometheus.Gatherer // /metrics source; nil uses prometheus.DefaultGatherer
	Logger   *log.Logger
	Now      func() time.Time
}

func (s *Server) logger() *log.Logger {
	if s.Logger == nil {
		s.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "api", ReportTimestamp: true})
	}
	return s.Logger
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := mux.NewRouter()
	r.Use(logRequests(s.logger()))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.serveHealth).Methods(http.MethodGet)
	api.HandleFunc("/epg/{channelID}", s.serveSchedule).Methods(http.MethodGet)
	api.HandleFunc("/epg/{channelID}/now", s.serveNowNext).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.Addr
	if addr == "" {
		addr = ":3001"
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	serverErr := make(chan error, 1)
	go func() {
		s.logger().Info("listening", "addr", addr, "epg_enabled", s.Guide.Enabled())
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger().Warn("shutdown", "err", err)
		}
		<-serverErr
		return nil
	}
}
