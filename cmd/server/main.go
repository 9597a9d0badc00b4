package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"sudokusolver/internal/library"
	"sudokusolver/internal/puzzles"
	"sudokusolver/internal/solverapi"
	httpTransport "sudokusolver/internal/transport/http"
	"sudokusolver/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Load pre-generated puzzles
	if err := puzzles.LoadGlobal(cfg.PuzzlesFile); err != nil {
		log.Printf("Warning: Could not load puzzles from %s: %v", cfg.PuzzlesFile, err)
		log.Println("Classic puzzle endpoints will report the catalogue as unavailable")
	} else {
		log.Printf("Loaded %d pre-generated puzzles", puzzles.Global().Count())
	}

	// Warm the built-in example catalogue concurrently so a misconfigured
	// cataloged spec fails fast in the boot log rather than lazily on a
	// client's first request against it.
	warmSpecs := make([]solverapi.ConstraintSpec, len(library.All()))
	for i, e := range library.All() {
		warmSpecs[i] = e.Spec
	}
	for i, res := range solverapi.WarmCatalogue(context.Background(), warmSpecs, 4) {
		if res.Err != nil {
			log.Printf("Warning: catalogue entry %q failed to build: %v", library.All()[i].Name, res.Err)
		} else if !res.Feasible {
			log.Printf("Warning: catalogue entry %q built but is infeasible", library.All()[i].Name)
		}
	}

	r := gin.Default()

	httpTransport.RegisterRoutes(r, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
