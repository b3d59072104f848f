// Command blackboardd hosts the boards of one namespace: it serves health and metrics,
// delivers signals published on Redis to boards, and flushes board state on shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dyluth/democrite/internal/config"
	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/server"
	"github.com/dyluth/democrite/internal/storage"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to democrite.yml")
	flag.Parse()

	// 1. Load configuration (DEMOCRITE_REDIS_URL and DEMOCRITE_NAMESPACE override the file)
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if !filepath.IsAbs(cfg.Templates.Path) {
		cfg.Templates.Path = filepath.Join(filepath.Dir(*configPath), cfg.Templates.Path)
	}
	if cfg.Storage.Backend != storage.BackendRedis {
		fmt.Fprintf(os.Stderr, "Error: blackboardd requires storage.backend: redis, got %s\n", cfg.Storage.Backend)
		os.Exit(1)
	}

	// 2. Open the host: templates, Redis, board registry
	ctx := context.Background()
	n, err := node.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Printf("[Blackboardd] Starting for namespace '%s' with %d templates and %d registered boards",
		cfg.Namespace, len(n.Templates.Names()), len(n.Registry.List()))

	// 3. Health and metrics endpoints
	health := server.NewHealthServer(n, func() int { return len(n.Host.Active()) })
	if err := health.Start(cfg.Server.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start health server: %v\n", err)
		n.Close(ctx)
		os.Exit(1)
	}
	log.Printf("[Blackboardd] Health server listening on %s", cfg.Server.Addr)

	// 4. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 5. Deliver signals to boards until stopped
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.ServeSignals(runCtx)
	}()

	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Printf("[Blackboardd] Received signal %v, shutting down gracefully...", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			log.Printf("[Blackboardd] Signal loop stopped: %v", runErr)
			exitCode = 1
		}
	}

	// 6. Flush every board before releasing Redis
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := health.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Blackboardd] Health server shutdown: %v", err)
	}
	if err := n.Close(shutdownCtx); err != nil {
		log.Printf("[Blackboardd] Failed to flush boards: %v", err)
		exitCode = 1
	}

	log.Printf("[Blackboardd] Stopped")
	os.Exit(exitCode)
}
