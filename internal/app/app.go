package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"github.com/drstein77/salesdash/internal/charts"
	"github.com/drstein77/salesdash/internal/config"
	"github.com/drstein77/salesdash/internal/controllers"
	"github.com/drstein77/salesdash/internal/dbkeeper"
	"github.com/drstein77/salesdash/internal/export"
	"github.com/drstein77/salesdash/internal/logger"
	"github.com/drstein77/salesdash/internal/middleware"
	"github.com/drstein77/salesdash/internal/report"
	"github.com/drstein77/salesdash/internal/storage"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	srv             *http.Server
	ctx             context.Context
	option          *config.Options
	storage         *storage.ReportStorage
	shutdownTimeout time.Duration
	Log             *logger.Logger
}

// NewServer creates a new Server instance with the provided context. The
// server runs until ctx is cancelled.
func NewServer(ctx context.Context, option *config.Options) (*Server, error) {
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		return nil, err
	}

	return &Server{
		ctx:             ctx,
		option:          option,
		shutdownTimeout: shutdownTimeout,
		Log:             nLogger,
	}, nil
}

// Serve listens on the configured address and blocks until the server
// context is cancelled and open requests are drained, or serving fails.
func (server *Server) Serve() error {
	ln, err := net.Listen("tcp", server.option.RunAddr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return server.serve(ln)
}

func (server *Server) serve(ln net.Listener) error {
	builder, err := newBuilder(server.option, server.Log)
	if err != nil {
		_ = ln.Close()
		return err
	}

	// a nil *DBKeeper must not end up in a non-nil interface
	var keeper storage.Keeper
	if kp := dbkeeper.NewDBKeeper(server.ctx, server.option.DataBaseDSN, server.option.MigrationsDir, server.Log); kp != nil {
		keeper = kp
	}
	server.storage = storage.NewReportStorage(builder, keeper, server.Log)

	basecontr := controllers.NewBaseController(server.storage, server.Log)

	// create router and mount routes
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(server.Log.RequestLogger)
	r.Use(middleware.UploadLimit(server.option.MaxUploadBytes()))
	r.Mount("/", basecontr.Route())

	server.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.Log.Info("server started",
		zap.String("address", ln.Addr().String()),
		zap.Bool("history", server.storage.HistoryEnabled()),
		zap.String("env_file", server.option.EnvFile()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		server.release()
		return fmt.Errorf("serve: %w", err)
	case <-server.ctx.Done():
	}

	server.shutdown()
	<-errCh
	return nil
}

// shutdown stops accepting connections and waits at most shutdownTimeout
// for open requests before releasing the storage.
func (server *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), server.shutdownTimeout)
	defer cancel()

	if err := server.srv.Shutdown(ctx); err != nil {
		server.Log.Error("server shutdown error", zap.Error(err))
	} else {
		server.Log.Info("server stopped gracefully")
	}
	server.release()
}

func (server *Server) release() {
	server.storage.Close()
	_ = server.Log.Sync()
}

// RunReport builds the report of one spreadsheet file, prints it to out and,
// when bundlePath is set, writes the export bundle there.
func RunReport(ctx context.Context, option *config.Options, path, bundlePath string, out io.Writer) error {
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		return err
	}
	defer func() { _ = nLogger.Sync() }()

	builder, err := newBuilder(option, nLogger)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	rep, err := storage.NewReportStorage(builder, nil, nLogger).ProcessSpreadsheet(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	if err := export.NewReporter(out).Handle(rep); err != nil {
		return err
	}

	if bundlePath == "" {
		return nil
	}
	bundle, err := os.Create(bundlePath)
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}
	if err := export.WriteBundle(bundle, rep, charts.DefaultSize); err != nil {
		_ = bundle.Close()
		return err
	}
	if err := bundle.Close(); err != nil {
		return fmt.Errorf("closing bundle: %w", err)
	}
	nLogger.Info("bundle written", zap.String("path", bundlePath))
	return nil
}

func newBuilder(option *config.Options, log *logger.Logger) (*report.Builder, error) {
	fields, err := option.Fields()
	if err != nil {
		return nil, err
	}
	return report.NewBuilder(fields, option.PreviewRows(), log), nil
}
