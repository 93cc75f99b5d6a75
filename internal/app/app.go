// Package app wires configuration, logging, storage and the HTTP and gRPC
// servers together and runs the selected command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/rango/internal/auth"
	"github.com/patric-chuzhbe/rango/internal/config"
	"github.com/patric-chuzhbe/rango/internal/db/jsondb"
	"github.com/patric-chuzhbe/rango/internal/db/memorystorage"
	"github.com/patric-chuzhbe/rango/internal/db/sqldb"
	"github.com/patric-chuzhbe/rango/internal/db/storage"
	"github.com/patric-chuzhbe/rango/internal/grpcserver"
	"github.com/patric-chuzhbe/rango/internal/ipchecker"
	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/media"
	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/router"
	"github.com/patric-chuzhbe/rango/internal/seed"
	"github.com/patric-chuzhbe/rango/internal/service"
	"github.com/patric-chuzhbe/rango/internal/session"
)

const shutdownTimeout = 10 * time.Second

// App holds everything the rango binary runs.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	svc         *service.Service
	httpHandler http.Handler
	grpcHandler grpcserver.DirectoryServer
}

// New loads the configuration, initializes the logger, opens the storage
// and builds the routers. options are passed to config.New.
func New(options ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(options...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(app.cfg.MediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `os.MkdirAll()` calling: %w", err)
	}

	sessionKey, err := app.cfg.SessionKey()
	if err != nil {
		return nil, err
	}
	if app.cfg.SessionKeyGenerated {
		logger.Log.Warnln("SESSION_SIGNING_SECRET_KEY is not set, using a random key; sessions end on restart")
	}

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	app.svc = service.New(app.db, media.New(app.cfg.MediaDir))

	app.httpHandler = router.New(
		app.svc,
		auth.New(app.db, router.LoginURL),
		session.NewManager(app.cfg.SessionCookieName, sessionKey, app.cfg.SessionMaxAge),
		checker,
		app.cfg.MediaDir,
		app.cfg.Policy(),
		app.cfg.TopListSize,
	)

	if app.cfg.GRPCAddr != "" {
		app.grpcHandler = grpcserver.NewDirectoryHandler(app.svc, app.cfg.Policy(), app.cfg.TopListSize)
	}

	return app, nil
}

// Run executes the configured command until it finishes or the process
// receives SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch a.cfg.Command {
	case config.CommandPopulate:
		return a.Populate(ctx)
	default:
		return a.Serve(ctx)
	}
}

// Populate seeds the storage with the sample directory and closes it.
func (a *App) Populate(ctx context.Context) error {
	if err := seed.Populate(ctx, a.svc, seed.Data); err != nil {
		_ = a.db.Close()
		return err
	}

	return a.db.Close()
}

// Serve runs the HTTP server, and the gRPC server when configured, until
// ctx is done. The storage is closed on return.
func (a *App) Serve(ctx context.Context) error {
	httpListener, err := net.Listen("tcp", a.cfg.RunAddr)
	if err != nil {
		_ = a.db.Close()
		return fmt.Errorf("in internal/app/app.go/Serve(): error while `net.Listen()` calling: %w", err)
	}
	logger.Log.Infoln("server running", "RunAddr", httpListener.Addr().String())

	server := &http.Server{
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.Serve(httpListener)
	}()

	var grpcServer *grpc.Server
	if a.grpcHandler != nil {
		var grpcListener net.Listener
		grpcServer, grpcListener, err = grpcserver.NewGRPCServer(a.cfg.GRPCAddr, a.grpcHandler)
		if err != nil {
			_ = server.Close()
			_ = a.db.Close()
			return fmt.Errorf("in internal/app/app.go/Serve(): error while `grpcserver.NewGRPCServer()` calling: %w", err)
		}
		logger.Log.Infoln("gRPC server running", "GRPCAddr", grpcListener.Addr().String())

		go func() {
			serverErrCh <- grpcServer.Serve(grpcListener)
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing the storage and exiting...")
	case serveErr = <-serverErrCh:
		logger.Log.Debugln("Error passed from a server: ", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serveErr = errors.Join(serveErr, fmt.Errorf("server shutdown error: %w", err))
	}

	if err := a.db.Close(); err != nil {
		serveErr = errors.Join(serveErr, err)
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", serveErr)
	}

	return nil
}

// Close flushes the logger.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.SQLitePath != "" {
		return models.StorageTypeSQLite
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return sqldb.New(
			context.Background(),
			cfg.DatabaseDriver,
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeSQLite:
		return sqldb.New(
			context.Background(),
			sqldb.DriverSQLite,
			cfg.SQLitePath,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
