package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/extractor"
	"github.com/kozaktomas/attendance/internal/frame"
	"github.com/kozaktomas/attendance/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run one attendance session from the terminal",
	Long: `Watch consumes frames from the camera snapshot endpoint (or a directory of
stills), matches observed faces against the gallery, and records the first
confident identity for the given session key. The run stops after the first
recorded match, at the end of the stream, or on Ctrl+C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("key", "", "Session key scoping the attendance records (required)")
	watchCmd.Flags().String("dir", "", "Read frames from a directory of images instead of the camera")
	watchCmd.Flags().String("snapshot-url", "", "Camera snapshot URL (defaults to CAMERA_SNAPSHOT_URL)")
	watchCmd.Flags().Int("max-frames", 0, "Stop after this many frames (0 = unbounded)")
	_ = watchCmd.MarkFlagRequired("key")
}

// watchSource builds the frame source from flags and config.
func watchSource(cmd *cobra.Command, cfg *config.Config) (frame.Source, error) {
	if dir := mustGetString(cmd, "dir"); dir != "" {
		return frame.NewDirSource(dir)
	}

	url := mustGetString(cmd, "snapshot-url")
	if url == "" {
		url = cfg.Capture.SnapshotURL
	}
	if url == "" {
		return nil, errors.New("no frame source; pass --dir or set CAMERA_SNAPSHOT_URL")
	}
	return frame.NewSnapshotSource(url, cfg.Capture.SnapshotInterval()), nil
}

// printEvents consumes session events and renders them as terminal lines.
func printEvents(events chan session.Event) {
	for ev := range events {
		switch ev.Type {
		case session.EventCapturing:
			fmt.Printf("Capturing frames for session %q...\n", ev.Message)
		case session.EventNoMatch:
			fmt.Printf("Frame %d: face observed, no match (closest distance %.3f)\n", ev.Frame, ev.Distance)
		case session.EventMatch:
			fmt.Printf("Frame %d: matched %s (distance %.3f)\n", ev.Frame, ev.Identity, ev.Distance)
		case session.EventRecorded:
			fmt.Printf("Attendance recorded for %s\n", ev.Identity)
		case session.EventAlready:
			fmt.Printf("%s was already recorded for this session\n", ev.Identity)
		case session.EventWarning:
			fmt.Printf("Warning: %s\n", ev.Message)
		case session.EventStopped:
			fmt.Printf("Session stopped after %d frames: %s\n", ev.Frame, ev.Message)
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	sessionKey := mustGetString(cmd, "key")
	if cfg.Extractor.URL == "" {
		return errors.New("EXTRACTOR_URL environment variable is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	l, err := buildLedger(ctx, cfg, pool)
	if err != nil {
		return err
	}

	src, err := watchSource(cmd, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	maxFrames := mustGetInt(cmd, "max-frames")
	if maxFrames == 0 {
		maxFrames = cfg.Capture.MaxFrames
	}

	controller := &session.Controller{
		Gallery:   g,
		Ledger:    l,
		Extractor: extractor.NewClient(cfg.Extractor.URL),
		Threshold: cfg.Matcher.Threshold,
		Scale:     cfg.Capture.Scale,
		MaxFrames: maxFrames,
	}

	var events session.Broadcaster
	listener := events.AddListener()
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(listener)
	}()

	outcome := controller.Run(ctx, sessionKey, src, &events)
	events.RemoveListener(listener)
	<-done

	if outcome.Err != nil && !errors.Is(outcome.Err, context.Canceled) {
		return outcome.Err
	}
	return nil
}
