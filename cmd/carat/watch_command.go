package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"carat/internal/drive"
	"carat/internal/events"
	"carat/internal/history"
	"carat/internal/pipeline"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var artist, album, library string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Wait for a disc insertion, then rip it",
		Long: `Watch listens for optical media insertion on the configured drive and starts
the rip as soon as a disc lands in the tray. The command exits after one
completed run; interrupt it to stop waiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, ctx, artist, album, library)
		},
	}

	cmd.Flags().StringVar(&artist, "artist", "", "Album artist (required)")
	cmd.Flags().StringVar(&album, "album", "", "Album title (required)")
	cmd.Flags().StringVar(&library, "library", "", "Library root (defaults to the last used root)")
	_ = cmd.MarkFlagRequired("artist")
	_ = cmd.MarkFlagRequired("album")

	return cmd
}

func runWatch(cmd *cobra.Command, ctx *commandContext, artist, album, library string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	inserted := make(chan string, 1)
	monitor := drive.NewMonitor(cfg.MakeMKV.OpticalDrive, func(_ context.Context, device string) {
		select {
		case inserted <- device:
		default:
		}
	}, logger)
	if monitor == nil {
		return errors.New("watch requires makemkv.optical_drive to be configured")
	}
	if err := monitor.Start(cmd.Context()); err != nil {
		return err
	}
	defer monitor.Stop()
	if !monitor.Running() {
		return errors.New("disc monitor unavailable; run 'carat rip' manually")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Waiting for a disc in %s...\n", cfg.MakeMKV.OpticalDrive)

	var device string
	select {
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	case device = <-inserted:
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Disc detected in %s.\n", device)

	// The drive needs a moment to settle after the media-change event before
	// MakeMKV can open it.
	select {
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	case <-time.After(2 * time.Second):
	}

	lock, err := history.NewRunLock(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	store, err := openHistory(cmd, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	bus := events.NewBus()
	renderer := newConsoleRenderer(os.Stdout)
	renderer.Attach(bus)

	result, runErr := pipeline.New(cfg, bus, store, logger).Run(cmd.Context(), pipeline.Request{
		Source:      "-1",
		Artist:      artist,
		Album:       album,
		LibraryRoot: library,
	})
	bus.Close()
	renderer.Wait()

	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Done: %s\n", result.TargetDir)
	return nil
}
