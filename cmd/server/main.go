/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the capacity engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (defaults, YAML file, QUOTA_* environment)
  2. Apply command-line flags
  3. Open the configured store (sqlite or postgres)
  4. Create API handler and router
  5. Start the pacing digest scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port (default: 8080)
  -driver  sqlite | postgres (default: sqlite)
  -db      SQLite database path (default: quota.db)
           Use ":memory:" for in-memory database
  -dsn     PostgreSQL connection string

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the digest scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/quota.db"

  # Run against postgres
  QUOTA_DSN=postgres://quota@localhost/quota ./server -driver=postgres

  # Run on different port with a config file
  ./server -config=quota.yaml -port=3000

SEE ALSO:
  - config/config.go: Configuration layers
  - api/server.go: Router configuration
  - api/scheduler.go: Pacing digest
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/config"
	"github.com/warp/capacity-engine/store"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	driver := flag.String("driver", "", "storage driver: sqlite or postgres (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL connection string (overrides config)")
	flag.Parse()

	cfg, err := config.Read(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize store
	ctx, cancelOpen := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := store.Open(ctx, cfg)
	cancelOpen()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()

	// Initialize handler and router
	handler := api.NewHandler(st)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Pacing digest
	digest := api.NewDigestScheduler(st)
	digest.Enabled = cfg.Digest.Enabled
	digest.CheckInterval = cfg.Digest.Interval
	digest.Start()
	defer digest.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (%s store)", cfg.Port, cfg.Driver)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
