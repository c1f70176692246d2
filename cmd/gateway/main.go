package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelrouter/internal/config"
	"modelrouter/internal/httpapi"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create router with all dependencies
	mux, deps, err := httpapi.NewRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Create HTTP server
	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.Router.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Model router listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Drain the usage sink so buffered entries reach the database
	if sink, ok := deps.Sink.(interface{ Shutdown(context.Context) error }); ok {
		if err := sink.Shutdown(ctx); err != nil {
			log.Printf("Failed to drain usage sink: %v", err)
		}
	}

	// Close provider adapters, then the backing stores
	if err := deps.Factory.Close(); err != nil {
		log.Printf("Failed to close provider factory: %v", err)
	}
	if err := deps.Redis.Close(); err != nil {
		log.Printf("Failed to close Redis client: %v", err)
	}
	if err := deps.DB.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}

	log.Println("Server exited")
}
