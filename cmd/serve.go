package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/gallery"
	"github.com/kozaktomas/attendance/internal/session"
	"github.com/kozaktomas/attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the attendance HTTP API: session start/stop with a live SSE event
stream, attendance records with CSV export, and gallery inspection.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Extractor.URL == "" {
		return errors.New("EXTRACTOR_URL environment variable is required")
	}

	ctx := cmd.Context()

	pool, err := openPool(cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	g, err := buildGallery(ctx, cfg, pool)
	if err != nil {
		return err
	}
	fmt.Printf("Gallery ready with %d identities\n", g.Size())

	fmt.Println("Building in-memory candidate index over the gallery...")
	index := gallery.NewIndex(g)

	l, err := buildLedger(ctx, cfg, pool)
	if err != nil {
		return err
	}

	ext := extractor.NewClient(cfg.Extractor.URL)
	manager := session.NewManager(&session.Controller{
		Gallery:   g,
		Ledger:    l,
		Extractor: ext,
		Threshold: cfg.Matcher.Threshold,
		Scale:     cfg.Capture.Scale,
		MaxFrames: cfg.Capture.MaxFrames,
	})

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, web.Deps{
		Gallery:   g,
		Index:     index,
		Ledger:    l,
		Sessions:  manager,
		Extractor: ext,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		// Stop running sessions at their next frame boundary.
		for _, sess := range manager.List() {
			if !sess.GetState().Terminal() {
				sess.Stop()
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
