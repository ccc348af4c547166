package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"carat/internal/config"
	"carat/internal/logging"
)

// commandContext defers config loading until a command actually needs it and
// shares the loaded result across subcommands.
type commandContext struct {
	configFlag *string

	mu      sync.Mutex
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads and caches the configuration.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, found, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	if !found {
		fmt.Println("No configuration file found; using defaults. Run 'carat config init' to create one.")
	}
	c.cfg = cfg
	c.cfgPath = path
	return cfg, nil
}

// ensureLogger builds the file-backed logger from the loaded config.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logger != nil {
		return c.logger, nil
	}
	outputs := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		outputs = []string{filepath.Join(cfg.Paths.LogDir, "carat.log")}
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "carat",
		Short:         "Rip Dolby Atmos albums into a gapless music library",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRipCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newToolsCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
