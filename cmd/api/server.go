package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"nestegg/internal/interfaces/scheduler"
	"nestegg/internal/interfaces/worker"
)

// StartServer creates and starts the HTTP server in the background.
func StartServer(addr string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	return srv
}

// GracefulShutdown stops the HTTP server, scheduler and queue consumer,
// draining in-flight work before returning.
func GracefulShutdown(srv *http.Server, sched *scheduler.Scheduler, consumer *worker.Consumer, timeout time.Duration) {
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop taking new HTTP requests first
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	// Stop scheduling new sync passes
	if sched != nil {
		sched.Shutdown()
	}

	// Drain in-flight queue jobs
	if consumer != nil {
		consumer.Shutdown()
	}

	log.Println("Server stopped")
}
