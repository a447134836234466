/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Finova savings-engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Initialize SQLite store
  3. Build the mail dispatcher (SMTP if configured, log-only otherwise)
  4. Wire aggregator, replicator, engine, HTTP handler
  5. Start the goal scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: finova.db)
             Use ":memory:" for in-memory database
  -interval  Goal scheduler cadence (default: 6h)

ENVIRONMENT (.env supported):
  SMTP_HOST, SMTP_PORT, EMAIL_USER, EMAIL_PASS
             SMTP transport for goal notifications. With SMTP_HOST
             unset, notifications are logged instead of mailed.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler (waits for an in-flight cycle)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/finova.db"

  # Run with in-memory database and a fast scheduler
  ./server -db=":memory:" -interval=1m

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Periodic goal processing
  - store/sqlite/sqlite.go: Database implementation
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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finova/savings-engine/api"
	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
	"github.com/finova/savings-engine/notify"
	"github.com/finova/savings-engine/store/sqlite"
)

func main() {
	// .env is optional; flags and the real environment still apply.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "finova.db", "SQLite database path")
	interval := flag.Duration("interval", 6*time.Hour, "Goal scheduler cadence")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire domain services
	dispatcher := buildDispatcher()
	clock := goals.SystemClock()
	aggregator := ledger.NewAggregator(store)
	replicator := ledger.NewReplicator(store)
	engine := goals.NewEngine(store, store, aggregator, dispatcher, clock)

	// HTTP layer
	handler := api.NewHandler(store, store, store, engine, aggregator, clock)
	router := api.NewRouter(handler)

	// Background goal processing
	scheduler := api.NewGoalScheduler(engine, replicator, clock)
	scheduler.Interval = *interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// buildDispatcher selects SMTP when configured, logging otherwise.
func buildDispatcher() notify.Dispatcher {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Println("SMTP_HOST not set; notifications will be logged, not mailed")
		return notify.NewLogDispatcher()
	}

	smtpPort := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			smtpPort = parsed
		} else {
			log.Printf("Invalid SMTP_PORT %q, using %d", p, smtpPort)
		}
	}

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     host,
		Port:     smtpPort,
		Username: os.Getenv("EMAIL_USER"),
		Password: os.Getenv("EMAIL_PASS"),
		From:     os.Getenv("EMAIL_USER"),
	})
	return notify.NewEmailDispatcher(mailer)
}
