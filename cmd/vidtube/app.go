package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/vidtube/internal/assets"
	"github.com/nkiryanov/vidtube/internal/db"
	"github.com/nkiryanov/vidtube/internal/handlers"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/metrics"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/repository/memory"
	"github.com/nkiryanov/vidtube/internal/repository/postgres"
	"github.com/nkiryanov/vidtube/internal/service/auth"
	"github.com/nkiryanov/vidtube/internal/service/auth/tokenmanager"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	close  func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations, or keep users in memory
	var (
		storage repository.Storage
		closeDB = func() {}
	)
	if c.DatabaseDSN == "" {
		logger.Warn("database is not configured, users are kept in memory")
		storage = memory.NewStorage()
	} else {
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		storage = postgres.NewStorage(pool)
		closeDB = pool.Close
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
	})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	uploader, err := assets.NewS3Uploader(ctx, assets.Config{
		Endpoint:     c.S3Endpoint,
		Region:       c.S3Region,
		Bucket:       c.S3Bucket,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		PublicURL:    c.S3PublicURL,
		UsePathStyle: c.S3Endpoint != "",
	})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("error while creating asset uploader. Err: %w", err)
	}

	recorder := metrics.NewRecorder()
	authService, err := auth.NewService(
		auth.Config{
			Logger:        logger,
			Recorder:      recorder,
			SecureCookies: c.SecureCookies,
		},
		tokenManager,
		storage,
		uploader,
	)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(authService, recorder.Handler(), logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		close:      closeDB,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
