package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/chargemap/internal/config"
	"github.com/rpattn/chargemap/internal/dashboard"
	"github.com/rpattn/chargemap/internal/db"
	"github.com/rpattn/chargemap/internal/export"
	"github.com/rpattn/chargemap/internal/geomap"
	"github.com/rpattn/chargemap/internal/ingestion"
	"github.com/rpattn/chargemap/internal/middleware"
	"github.com/rpattn/chargemap/internal/repository"
	"github.com/rpattn/chargemap/internal/session"

	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(config.Dir())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load audit log: Postgres when enabled, in memory otherwise
	var loadLogs repository.LoadLogRepository
	if cfg.Database.Enabled {
		if err := db.RunMigrations(cfg.Database); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer conn.Close()
		loadLogs = repository.NewLoadLogRepository(conn.Pool)
	} else {
		loadLogs = repository.NewMemoryLoadLogRepository(100)
	}

	loader := ingestion.NewLoader(cfg.Dataset.Delimiter, loadLogs)
	defaults := session.NewDefaultSource(loader, cfg.Dataset.Path)
	store := session.NewStore(cfg.Session.TTL, cfg.Session.MaxEntries)
	datasets := session.NewDatasets(store, defaults)

	if cfg.Dataset.Watch {
		go func() {
			if err := defaults.Watch(ctx); err != nil {
				log.Printf("[WATCH] disabled: %v", err)
			}
		}()
	}

	mapOpts := geomap.DefaultOptions()
	mapOpts.Zoom = cfg.Map.Zoom

	dash, err := dashboard.NewHandler(datasets, loader, loadLogs, dashboard.Settings{
		Title:       cfg.UI.Title,
		PageTitle:   cfg.UI.PageTitle,
		BannerImage: cfg.UI.BannerImage,
		TableLimit:  cfg.UI.TableLimit,
		Map:         mapOpts,
	})
	if err != nil {
		log.Fatalf("Failed to create dashboard: %v", err)
	}

	exportHandler := export.NewHTTPHandler(export.NewService(cfg.Dataset.Delimiter), dash, "cargadores_filtrados")

	mux := http.NewServeMux()
	dash.Routes(mux)
	mux.Handle("/export.csv", exportHandler)
	mux.Handle("/export.xlsx", exportHandler)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(middleware.LoggingMiddleware(
		middleware.DataLoaderMiddleware(datasets)(mux),
	))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting dashboard server on %s", cfg.Server.Addr)
		log.Printf("Default dataset: %s", cfg.Dataset.Path)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
