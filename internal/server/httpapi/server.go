// Package httpapi exposes the publication service over REST (gin).
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/logging"
	"github.com/DariusIMP/publish3-backend/internal/server/models"
	"github.com/DariusIMP/publish3-backend/internal/server/services"
	"github.com/gin-gonic/gin"
)

const defaultShutdownTimeout = 10 * time.Second

// PublicationService is what the handlers need from services.PublicationService.
type PublicationService interface {
	Commit(ctx context.Context, userID string, form services.Form, upload *services.Upload) (*services.CommitResult, error)
	Get(ctx context.Context, id string) (*models.Publication, error)
	List(ctx context.Context, page, limit int) ([]*models.Publication, error)
	Authors(ctx context.Context, id string) ([]*models.PublicationAuthor, error)
	Citations(ctx context.Context, id string) ([]*models.Citation, error)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	UserID(token string) (string, error)
}

type Server struct {
	address         string
	publications    PublicationService
	verifier        TokenVerifier
	maxUploadBytes  int64
	shutdownTimeout time.Duration
	logger          logging.Logger
}

// NewServer returns a Server listening on address. On shutdown, requests in
// progress get up to shutdownTimeout to finish; a commit runs inside its
// request, so this should cover the commit timeout. Zero means 10s.
func NewServer(address string, l logging.Logger, ps PublicationService, v TokenVerifier,
	maxUploadBytes int64, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		address:         address,
		publications:    ps,
		verifier:        v,
		maxUploadBytes:  maxUploadBytes,
		shutdownTimeout: shutdownTimeout,
		logger:          l.With("module", "http_server"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20

	engine.Use(s.requestID(), s.recoverPanic(), s.logRequest())

	engine.GET("/health", s.health)

	api := engine.Group("/api/v1/publications")
	api.GET("", s.listPublications)
	api.GET("/:id", s.getPublication)
	api.GET("/:id/authors", s.getAuthors)
	api.GET("/:id/citations", s.getCitations)
	api.POST("", s.requireAuth(), s.createPublication)

	return engine
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then stops accepting and waits
// for requests in progress before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ln)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...", "timeout", s.shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "http shutdown", "error", err)
		return err
	}
	return nil
}
