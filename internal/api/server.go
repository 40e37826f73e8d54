package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"github.com/clipforge/clipforge-server/internal/clipper"
	"github.com/clipforge/clipforge-server/internal/jobs"
	"github.com/clipforge/clipforge-server/internal/live"
	"github.com/clipforge/clipforge-server/internal/twitch"
)

// Cutter runs the clip pipeline for a validated plan.
type Cutter interface {
	Cut(ctx context.Context, plan clipper.Plan, w io.Writer) error
}

// ClipSource serves the decorative clips feed.
type ClipSource interface {
	HasCredentials() bool
	AppAccessToken(ctx context.Context) (string, error)
	TopClips(ctx context.Context, appToken string, logins []string, days, first int) ([]twitch.Clip, error)
}

// LiveStatus exposes the latest live-channel snapshot.
type LiveStatus interface {
	Current() live.Snapshot
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Clipper        Cutter
	Clips          ClipSource
	LiveStatus     LiveStatus
	Repository     jobs.Repository
	AllowedOrigins []string
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     cors(router),
			ReadTimeout: 15 * time.Second,
			// WriteTimeout stays 0: a cut run streams a ZIP whose duration
			// scales with clip count and ffmpeg speed.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
