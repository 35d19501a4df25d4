package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photo-library/internal/database"
	"photo-library/internal/handlers"
	"photo-library/internal/logging"
	"photo-library/internal/photos"
	"photo-library/internal/scan"
	"photo-library/internal/startup"
)

func main() {
	cfg, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabasePath, cfg.LibraryName)
	if err != nil {
		logging.Fatal("database error: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("failed to close database: %v", err)
		}
	}()

	library := photos.New(cfg, db, nil)

	// Index whatever is already on disk before serving requests.
	if _, err := library.IngestDirectory(ctx); err != nil {
		logging.Fatal("initial ingest failed: %v", err)
	}

	if cfg.WatcherEnabled {
		watcher, err := scan.NewWatcher(cfg.PhotosDir, cfg.Extensions, func() {
			if _, err := library.IngestDirectory(context.Background()); err != nil {
				logging.Error("rescan failed: %v", err)
			}
		})
		if err != nil {
			logging.Fatal("watcher error: %v", err)
		}
		defer func() { _ = watcher.Close() }()
		go watcher.Run(ctx)
	}

	router := mux.NewRouter()
	handlers.New(library).Register(router)
	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	router.Use(handlers.Instrument)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logging.Info("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error: %v", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateStoreMetrics()
			}
		}
	}()

	<-ctx.Done()
	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown error: %v", err)
	}
}
