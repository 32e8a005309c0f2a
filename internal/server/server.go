package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/edgetrack/internal/auth"
	"github.com/danmuck/edgetrack/internal/channel"
	"github.com/danmuck/edgetrack/internal/observability"
	"github.com/danmuck/edgetrack/internal/target"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Options configures the admin API.
type Options struct {
	Name        string
	Addr        string
	CorsOrigins []string
	// Token, when non-empty, guards every route that mutates targets.
	Token string
	// QueueStats is reported under /stats when set.
	QueueStats func() channel.QueueStats
}

// Server exposes the target registry over HTTP for operators.
type Server struct {
	name       string
	addr       string
	registry   *target.Registry
	httpRouter *gin.Engine
	logger     zerolog.Logger
	appeared   time.Time
	queueStats func() channel.QueueStats
	validator  auth.Validator
}

func New(opts Options, registry *target.Registry, logger zerolog.Logger) *Server {
	router := gin.New()
	// tokens may contain '/', which clients send escaped
	router.UseRawPath = true
	router.UnescapePathValues = true

	s := &Server{
		name:       opts.Name,
		addr:       opts.Addr,
		registry:   registry,
		httpRouter: router,
		logger:     logger.With().Str("component", "server").Logger(),
		appeared:   time.Now(),
		queueStats: opts.QueueStats,
	}
	if opts.Token != "" {
		s.validator = auth.StaticToken{Token: opts.Token}
	}

	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(s.logger))
	router.Use(observability.RequestMetricsMiddleware(opts.Name))
	if len(opts.CorsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: opts.CorsOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization", auth.HeaderAPIKey},
			MaxAge:       12 * time.Hour,
		}))
	}
	s.registerRoutes()
	return s
}

// requireToken rejects callers without the operator token. It is a no-op
// when no token is configured.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.validator == nil {
			c.Next()
			return
		}
		if err := auth.Check(s.validator, c.Request.Header); err != nil {
			s.logger.Debug().Str("path", c.FullPath()).Msg("admin request unauthorized")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.httpRouter
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.httpRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("admin api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("admin api shutdown")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) String() string {
	return "server.Admin"
}
