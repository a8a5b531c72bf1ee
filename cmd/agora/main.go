// Package main implements the agora CLI: a multi-agent claim-debate engine
// where fixed epistemic roles argue a claim across cycles on a shared
// blackboard.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agora/internal/config"
	"agora/internal/embedding"
	"agora/internal/events"
	"agora/internal/llm"
	"agora/internal/logging"
	"agora/internal/session"
	"agora/internal/store"
)

var (
	// Global flags
	configPath string
	workspace  string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "agora - multi-agent claim-debate engine",
	Long: `agora runs structured debates over a single claim.

A roster of fixed epistemic roles (Explorer, Critic, Connector, ...) argues
the claim across cycles on a shared blackboard. Support strength moves with
every accepted contribution until the claim graduates, dies, or the session
hits its cycle or cost budget. Everything is persisted to SQLite and can be
resumed later.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; the environment wins over the config file.
		_ = godotenv.Load()

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// engine bundles the shared infrastructure the commands run on.
type engine struct {
	cfg        *config.Config
	store      *store.Store
	bus        *events.Bus
	supervisor *session.Supervisor
}

// buildEngine loads config and wires the store, transports, bus, and
// supervisor. Caller closes the returned engine.
func buildEngine() (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}
	if err := logging.Initialize(ws, logging.Options{
		DebugMode:  verbose || cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.Boot("agora %s starting in %s", cfg.Version, ws)

	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, err
	}

	llmTimeout, err := cfg.LLMTimeoutDuration()
	if err != nil {
		st.Close()
		return nil, err
	}
	client, err := llm.NewGeminiClient(llm.GeminiConfig{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		ModelPool: cfg.LLM.ModelPool,
		Timeout:   llmTimeout,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:    cfg.Embedding.Provider,
		GenAIAPIKey: cfg.Embedding.APIKey,
		GenAIModel:  cfg.Embedding.Model,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	bus := events.NewBus()
	return &engine{
		cfg:        cfg,
		store:      st,
		bus:        bus,
		supervisor: session.NewSupervisor(cfg, client, embedder, st, bus),
	}, nil
}

func (e *engine) Close() {
	e.supervisor.Wait()
	if err := e.store.Close(); err != nil {
		logger.Warn("store close failed", zap.Error(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "agora.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace directory (default: cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
