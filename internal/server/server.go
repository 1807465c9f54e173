package server

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jamesarrow/kpi-vet/internal/api"
	"github.com/jamesarrow/kpi-vet/internal/config"
	"github.com/jamesarrow/kpi-vet/internal/importer"
	"github.com/jamesarrow/kpi-vet/internal/store"
)

// Server is the HTTP server hosting the dashboard API.
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
	log    zerolog.Logger
}

// NewServer wires the store, the ingestion coordinator and the API routes.
func NewServer(cfg *config.AppConfig, log zerolog.Logger) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		dataDir = cfg.Data.DataDir
	}

	st, err := store.New(filepath.Join(dataDir, "kpivet.db"))
	if err != nil {
		return nil, err
	}

	coordinator := importer.NewCoordinator(st, log)
	handler := api.NewHandler(st, coordinator, int64(cfg.Upload.MaxFileSizeMB)<<20, log)

	s := &Server{
		router: gin.Default(),
		store:  st,
		api:    handler,
		log:    log.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	group := s.router.Group("/api")
	{
		s.api.RegisterRoutes(group)
	}
}

// Run starts the server.
func (s *Server) Run(addr string) error {
	s.log.Info().Str("addr", addr).Msg("listening")
	return s.router.Run(addr)
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// GetStore exposes the store for tests.
func (s *Server) GetStore() *store.Store {
	return s.store
}
