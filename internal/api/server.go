// Package api exposes the session over a local HTTP interface so a UI shell
// or scripts can drive the merge workflow.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vidstitch/internal/logging"
)

// Server wires the handler into an echo instance.
type Server struct {
	echo   *echo.Echo
	bind   string
	logger *slog.Logger
}

// NewServer builds the HTTP server on the given bind address.
func NewServer(bind string, handler *Handler, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         4 * 1024,
		DisablePrintStack: true,
	}))
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasSuffix(path, "/active")
		},
	}))

	registerRoutes(e, handler)

	return &Server{
		echo:   e,
		bind:   bind,
		logger: logging.WithComponent(logger, "api"),
	}
}

func registerRoutes(e *echo.Echo, h *Handler) {
	e.GET("/api/health", h.HandleHealth)

	files := e.Group("/api/files")
	files.GET("", h.HandleListFiles)
	files.POST("", h.HandleAddPaths)
	files.POST("/upload", h.HandleUploadBinary)
	files.PUT("/order", h.HandleReorder)
	files.DELETE("/:id", h.HandleDeleteFile)
	files.DELETE("", h.HandleClearFiles)

	e.POST("/api/merge", h.HandleMerge)

	jobGroup := e.Group("/api/jobs")
	jobGroup.GET("", h.HandleListJobs)
	jobGroup.GET("/active", h.HandleActiveJob)
	jobGroup.GET("/:id", h.HandleGetJob)
	jobGroup.GET("/:id/download", h.HandleDownload)

	e.POST("/api/reset", h.HandleReset)
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.bind)
	}()
	s.logger.Info("api listening", logging.String("bind", s.bind))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
