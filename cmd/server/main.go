package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-server/internal/app"
	"github.com/vovakirdan/wirechat-server/internal/config"
	wclog "github.com/vovakirdan/wirechat-server/internal/log"
)

func main() {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:   "wirechat-server",
		Short: "Line-oriented multi-user TCP chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}
	root.Flags().StringVarP(&configPath, "configpath", "c", "", "path to config file (if omitted, defaults are used)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	// pflag shorthands are a single rune, so the two-letter "-cp" form
	// is rewritten to --configpath before cobra parses the arguments.
	args := os.Args[1:]
	for i, a := range args {
		if a == "-cp" {
			args[i] = "--configpath"
		}
	}
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	logger := wclog.New(logLevel)

	cfg, err := config.Load(logger, configPath)
	if err != nil {
		return fmt.Errorf("startup configuration error: %w", err)
	}

	logger.Info().
		Int("port", cfg.Port).
		Int("maxusers", cfg.MaxUsers).
		Int("maxchannels", cfg.MaxChannels).
		Str("servername", cfg.ServerName).
		Msg("starting wirechat server")

	application := app.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	return nil
}
