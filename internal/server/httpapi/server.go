// Package httpapi exposes the authentication and file-storage services over
// HTTP. Routing and request parsing live here; all decisions are made by the
// services layer.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/services"
)

type Server struct {
	address       string
	maxUploadSize int64
	logger        logging.Logger
	users         *services.UserService
	sessions      *services.SessionService
	files         *services.FileService
	echo          *echo.Echo
}

func NewServer(cfg *config.Config, l logging.Logger, us *services.UserService, ss *services.SessionService, fs *services.FileService) *Server {
	s := &Server{
		address:       cfg.EndpointAddr,
		maxUploadSize: cfg.MaxUploadSize,
		logger:        l.With("module", "http_server"),
		users:         us,
		sessions:      ss,
		files:         fs,
	}
	s.echo = s.routes()
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.maxUploadSize>>20)))

	e.POST("/signup", s.signupHandler)
	e.POST("/signin", s.signinHandler)
	e.POST("/signin/new_token", s.newTokenHandler)

	e.GET("/info", s.infoHandler, s.requireAuth)
	e.GET("/logout", s.logoutHandler, s.requireAuth)

	file := e.Group("/file", s.requireAuth)
	file.POST("/upload", s.uploadFileHandler)
	file.GET("/list", s.listFilesHandler)
	file.GET("/:id", s.getFileHandler)
	file.GET("/download/:id", s.downloadFileHandler)
	file.PUT("/update/:id", s.updateFileHandler)
	file.DELETE("/delete/:id", s.deleteFileHandler)

	return e
}

// Run starts the HTTP server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
