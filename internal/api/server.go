package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"isofit/app"

	"github.com/gin-gonic/gin"
)

// Server exposes the fitting service over HTTP
type Server struct {
	router  *gin.Engine
	service *app.FittingService
}

// NewServer creates a server with all routes registered
func NewServer(service *app.FittingService) *Server {
	s := &Server{
		router:  gin.New(),
		service: service,
	}
	s.router.Use(gin.Logger(), gin.Recovery())
	s.setupRoutes()
	return s
}

// Router returns the underlying gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	h := NewFitHandler(s.service)

	s.router.GET("/healthz", h.Health)

	api := s.router.Group("/api/v1")
	api.POST("/fit", h.Fit)
	api.POST("/derive", h.Derive)
	api.POST("/chart", h.Chart)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:id", h.GetRun)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
