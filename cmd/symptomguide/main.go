package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"symptomguide/internal/assessment"
	"symptomguide/internal/config"
	"symptomguide/internal/inference"
	"symptomguide/internal/logging"
	"symptomguide/internal/server"
	"symptomguide/internal/store"
)

const version = "1.0.0"

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "symptomguide",
	Short: "symptomguide - LLM-backed health symptom assessment service",
	Long: `symptomguide runs a multi-stage symptom assessment flow backed by an
LLM inference provider: it decides whether a photo would help, analyzes
submitted images, checks them against the reported complaint, asks
follow-up questions, and produces a structured recommendation.

All recommendations are gated by deterministic safety rules for red-flag
symptoms and pediatric patients.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assessment HTTP service",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("symptomguide %s\n", version)
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logOpts := logging.Options{
		Dir:        cfg.Logging.Dir,
		DebugMode:  verbose || cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}
	if err := logging.Initialize(logOpts); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}
	defer logging.CloseAll()
	logging.Boot("symptomguide %s starting (provider %s, model %s)", version, cfg.Inference.Provider, cfg.Inference.Model)

	client, err := inference.NewClientFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	engine := assessment.NewLLMEngine(client)

	sessionStore, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessionStore.Close()

	orch := assessment.NewOrchestrator(engine, sessionStore)
	srv := server.New(orch, server.Options{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.GetShutdownTimeout(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("serving",
		zap.String("addr", cfg.Server.Addr),
		zap.String("provider", cfg.Inference.Provider),
		zap.Int("credentials", len(cfg.ValidCredentials())),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
