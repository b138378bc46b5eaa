// Package relay is a development backend for the live client: a topic broadcast
// hub, the presence roster and the follow endpoints.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	serviceName  = "sidechain-live-relay"
	realtimePath = "/api/v1/realtime"
)

// Config wires a Server
type Config struct {
	Addr      string
	JWTSecret string

	Roster  RosterStore
	Follows FollowStore

	// Tracing adds the otelgin middleware
	Tracing bool

	Logger *zap.Logger
}

// Server is the relay's HTTP surface
type Server struct {
	cfg     Config
	log     *zap.Logger
	auth    *Authenticator
	hub     *Hub
	metrics *Metrics
	engine  *gin.Engine
}

// New builds a Server. Nil stores default to in-memory ones.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Roster == nil {
		cfg.Roster = NewMemoryRoster(DefaultPresenceTTL)
	}
	if cfg.Follows == nil {
		cfg.Follows = NewMemoryFollows()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}

	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger,
		auth:    NewAuthenticator(cfg.JWTSecret),
		metrics: NewMetrics(),
	}
	s.hub = NewHub(s.auth, cfg.Roster, s.metrics, cfg.Logger)
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if s.cfg.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(ginLogger(s.log))
	r.Use(s.metrics.middleware())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// Compression would break the websocket upgrade
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{realtimePath})))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	r.GET(realtimePath, s.hub.ServeWS)

	api := r.Group("/api/v1")
	api.Use(s.auth.requireAuth())
	{
		api.GET("/auth/me", s.me)
		api.GET("/presence/roster", s.roster)

		users := api.Group("/users/:id")
		users.GET("/follow", s.followStatus)
		users.POST("/follow", s.follow)
		users.DELETE("/follow", s.unfollow)
	}

	return r
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the realtime hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Authenticator returns the token validator the server uses
func (s *Server) Authenticator() *Authenticator {
	return s.auth
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Relay listening",
			zap.String("addr", s.cfg.Addr),
			zap.Bool("dev_auth", s.auth.DevMode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down relay...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.hub.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("Hub shutdown incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	s.closeStores()
	return nil
}

func (s *Server) closeStores() {
	if err := s.cfg.Follows.Close(); err != nil {
		s.log.Warn("Failed to close follow store", zap.Error(err))
	}
	if err := s.cfg.Roster.Close(); err != nil {
		s.log.Warn("Failed to close roster store", zap.Error(err))
	}
}
