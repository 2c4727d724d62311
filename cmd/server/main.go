// Package main initializes and starts the reference MEC document server,
// setting up configuration, logging, the document store, services, handlers
// and the HTTP listener.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/config"
	"github.com/atinyakov/mecsync/internal/db"
	"github.com/atinyakov/mecsync/internal/logger"
	"github.com/atinyakov/mecsync/internal/repository"
	"github.com/atinyakov/mecsync/internal/server/handler/http"
	"github.com/atinyakov/mecsync/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// store is what the server needs from a document backend.
type store interface {
	service.DocumentRepository
	db.Pruner
}

func main() {
	// Parse command-line and environment configuration.
	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the document backend selected by the DSN.
	repo, closeStore, err := openStore(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init document store", zap.Error(err))
	}
	defer closeStore()

	// Prune replaced revisions in the background.
	db.StartHistoryCleaner(ctx, repo,
		options.CleanInterval.Std(),
		options.HistoryRetention.Std(),
		zapLogger,
	)

	documentService := service.NewDocumentService(repo)
	documentHandler := &http.DocumentHandler{DocumentService: documentService, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(documentHandler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("shutdown", zap.Error(err))
		}
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
}

// openStore opens the backend for dsn and returns it with its closer.
func openStore(dsn string) (store, func(), error) {
	driver, source, err := db.ParseDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	switch driver {
	case db.DriverPostgres:
		conn, err := db.InitPostgres(source)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresDocumentRepository(conn), func() { _ = conn.Close() }, nil
	case db.DriverSQLite:
		conn, err := db.InitSQLite(source)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteDocumentRepository(conn), func() { _ = conn.Close() }, nil
	}
	return repository.NewMemoryDocumentRepository(), func() {}, nil
}
