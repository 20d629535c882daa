package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/glefebvre/housou/internal/config"
	"github.com/glefebvre/housou/internal/items"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/metadata"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/viewer"
)

// Backend is the schedule API the server renders from
type Backend interface {
	FetchConfig(ctx context.Context) (*models.Config, error)
	items.Fetcher
	metadata.Resolver
}

// Options configures a Server
type Options struct {
	Config  *config.Config
	Backend Backend
	DB      *gorm.DB
	// Now overrides the clock, mainly for tests
	Now func() time.Time
	// Draining reports whether the process is shutting down
	Draining func() bool
}

// Server represents the API server
type Server struct {
	router   *gin.Engine
	cfg      *config.Config
	backend  Backend
	db       *gorm.DB
	display  viewer.Options
	configs  *configCache
	sessions *sessions
	logger   *logger.Logger
	now      func() time.Time
	draining func() bool
}

// NewServer creates a new API server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Backend == nil || opts.DB == nil {
		return nil, fmt.Errorf("api server needs a config, a backend and a database")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	draining := opts.Draining
	if draining == nil {
		draining = func() bool { return false }
	}

	display, err := viewer.OptionsFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	tmpl, err := viewer.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	log := logger.AppLogger()
	router := gin.New()
	router.Use(requestIDMiddleware(), loggingMiddleware(log), errorHandlerMiddleware(log))
	router.SetHTMLTemplate(tmpl)

	idle := time.Duration(opts.Config.Server.SessionIdleMinutes) * time.Minute
	ttl := time.Duration(opts.Config.API.ConfigTTLSeconds) * time.Second
	retention := time.Duration(opts.Config.Server.SelectionRetentionDays) * 24 * time.Hour

	s := &Server{
		router:   router,
		cfg:      opts.Config,
		backend:  opts.Backend,
		db:       opts.DB,
		display:  display,
		configs:  newConfigCache(opts.Backend, ttl, now),
		sessions: newSessions(opts.DB, opts.Backend, idle, retention, now),
		logger:   log,
		now:      now,
		draining: draining,
	}

	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the background work of every client session
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Pages
	pages := s.router.Group("/", clientIDMiddleware())
	{
		pages.GET("/", s.schedulePage)
		pages.GET("/details", s.detailsPage)
	}

	// JSON routes
	api := s.router.Group("/api", corsMiddleware(s.cfg.Server.CORSAllowedOrigins), clientIDMiddleware())
	{
		api.GET("/selections", s.getSelections)
		api.PUT("/selections", s.putSelections)
		// preflight requests are answered by the CORS middleware
		api.OPTIONS("/selections", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
}
