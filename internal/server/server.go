package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/engine"
)

// sizer is implemented by stores that can report their on-disk size.
type sizer interface {
	SizeBytes() (int64, error)
}

type Server struct {
	reg       *engine.Registry
	rec       *engine.Recorder
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time
	log       zerolog.Logger
	db        sizer
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithSizer wires the store's size reporting into the health endpoint.
func WithSizer(s sizer) Option {
	return func(srv *Server) { srv.db = s }
}

func New(reg *engine.Registry, rec *engine.Recorder, b *bus.Bus, port int, tokenFile string, log zerolog.Logger, opts ...Option) *Server {
	srv := &Server{
		reg:       reg,
		rec:       rec,
		port:      port,
		token:     generateToken(),
		tokenFile: tokenFile,
		router:    http.NewServeMux(),
		startTime: time.Now(),
		log:       log,
	}
	for _, opt := range opts {
		opt(srv)
	}

	registerBusMetrics(b)
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/track", s.handleTrack)
	s.router.HandleFunc("/api/experiments", s.handleExperiments)
	s.router.HandleFunc("/api/experiments/", s.handleExperimentByID)
	s.router.Handle("/metrics", promhttp.Handler())

	// Admin endpoints (protected)
	s.router.Handle("/admin/experiments", s.authMiddleware(http.HandlerFunc(s.handleAdminExperiments)))
	s.router.Handle("/admin/experiments/", s.authMiddleware(http.HandlerFunc(s.handleAdminExperimentByID)))
}

func (s *Server) Start() error {
	// Write token to file for the CLI
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.log.Warn().Err(err).Str("path", s.tokenFile).Msg("failed to write token file")
		}
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info().Int("port", s.port).Msg("server listening")
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a fixed token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
