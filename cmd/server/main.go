// Package main is the entry point for the catalog API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/catalog-api/internal/catalog"
	"github.com/vyrodovalexey/catalog-api/internal/config"
	"github.com/vyrodovalexey/catalog-api/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the catalog-server command. Settings come from
// defaults, then APP_* environment variables, then flags.
func newRootCommand() *cobra.Command {
	cfg := config.New()
	envErr := cfg.LoadEnv()

	root := &cobra.Command{
		Use:   "catalog-server",
		Short: "Serve the books, games and movies catalogs over HTTP",
		Long: `catalog-server exposes one JSON document per catalog domain as a REST API
with review submission, filtering and a WebSocket stream of review events.

Every flag can also be set through its APP_* environment variable.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envErr != nil {
				return fmt.Errorf("loading config from environment: %w", envErr)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validating config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify that every configured catalog document loads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return checkDocuments(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	})

	return root
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.Int("probe_port", cfg.ProbePort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("data_dir", cfg.DataDir),
		zap.Strings("domains", cfg.Domains),
		zap.String("static_dir", cfg.StaticDir),
		zap.Float64("review_rate_limit", cfg.ReviewRateLimit),
		zap.Bool("events_enabled", cfg.EventsEnabled),
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return err
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

// checkDocuments loads each configured domain document and reports its size.
func checkDocuments(ctx context.Context, cfg *config.Config, out io.Writer) error {
	var errs []error
	for _, name := range cfg.Domains {
		domain, err := catalog.LookupDomain(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		store := catalog.NewFileStore(domain.DocumentPath(cfg.DataDir))
		items, err := store.Load(ctx)
		if err != nil {
			fmt.Fprintf(out, "%-8s FAIL %v\n", domain.Name, err)
			errs = append(errs, err)
			continue
		}

		reviews := 0
		for i := range items {
			reviews += len(items[i].Reviews)
		}
		fmt.Fprintf(out, "%-8s ok   %d items, %d reviews (%s)\n", domain.Name, len(items), reviews, store.Path())
	}
	return errors.Join(errs...)
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
