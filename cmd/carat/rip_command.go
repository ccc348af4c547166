package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carat/internal/config"
	"carat/internal/events"
	"carat/internal/history"
	"carat/internal/pipeline"
)

func newRipCommand(ctx *commandContext) *cobra.Command {
	var artist, album, library string

	cmd := &cobra.Command{
		Use:   "rip <source>",
		Short: "Rip one Atmos album from a drive index, disc image, folder, or media file",
		Long: `Rip acquires a single Dolby Atmos album from the given source and files it
into the library as a gapless entry (audio file, cue sheet, optional cover).

The source may be an optical drive index (0, 1, ...; -1 autodetects), a .iso
disc image, an unpacked disc folder (containing BDMV), a folder of per-track
files, or a single media file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRip(cmd, ctx, args[0], artist, album, library)
		},
	}

	cmd.Flags().StringVar(&artist, "artist", "", "Album artist (required)")
	cmd.Flags().StringVar(&album, "album", "", "Album title (required)")
	cmd.Flags().StringVar(&library, "library", "", "Library root (defaults to the last used root)")
	_ = cmd.MarkFlagRequired("artist")
	_ = cmd.MarkFlagRequired("album")

	return cmd
}

func runRip(cmd *cobra.Command, ctx *commandContext, sourceArg, artist, album, library string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
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
		Source:      sourceArg,
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

// openHistory opens the run-history database; failure degrades to running
// without history rather than blocking the rip.
func openHistory(cmd *cobra.Command, cfg *config.Config) (*history.Store, error) {
	store, err := history.Open(cmd.Context(), cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "history unavailable: %v\n", err)
		if errors.Is(err, os.ErrPermission) {
			return nil, err
		}
		return nil, nil
	}
	return store, nil
}
