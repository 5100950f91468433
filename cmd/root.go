package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rkondo/kaiwa/internal/config"
	"github.com/rkondo/kaiwa/internal/enrich"
	"github.com/rkondo/kaiwa/internal/graph"
	"github.com/rkondo/kaiwa/internal/llm"
	"github.com/rkondo/kaiwa/internal/logger"
	"github.com/rkondo/kaiwa/internal/repair"
	"github.com/rkondo/kaiwa/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "kaiwa",
	Short: "AI-generated Japanese lessons with guided conversation practice",
	Long: "Kaiwa compiles structured Japanese lessons from CanDo goals using an LLM pipeline\n" +
		"and runs a goal-driven dialogue practice loop over the result.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides KAIWA_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides KAIWA_CONFIG env var)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(lessonsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return config.LoadFrom(p)
	}
	return config.Load()
}

func newLogger(cmd *cobra.Command) (*logger.Logger, error) {
	mode := "prod"
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		mode = "dev"
	}
	return logger.New(mode)
}

// resolveDBPath returns the database path using --db flag (highest
// priority), then the config file / KAIWA_DB, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DB != "" {
		return cfg.DB, store.EnsureDir(cfg.DB)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command, cfg *config.Config, log *logger.Logger) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// newLoop builds the provider chain and wraps it in a repair loop.
func newLoop(ctx context.Context, cfg *config.Config, s *store.Store) (*repair.Loop, error) {
	llmCfg := cfg.LLMConfig()
	if err := llmCfg.Validate(); err != nil {
		if discovered, ok := llm.DiscoverConfig(); ok {
			llmCfg = discovered
		} else {
			return nil, err
		}
	}

	provider, err := llm.NewProvider(ctx, llmCfg, s.EventRepo())
	if err != nil {
		return nil, fmt.Errorf("init LLM provider: %w", err)
	}

	repairCfg := repair.DefaultConfig()
	if cfg.MaxRepair != nil {
		repairCfg.MaxRepair = *cfg.MaxRepair
	}
	return repair.New(provider, repairCfg), nil
}

// newEnricher connects to the knowledge graph when one is configured.
// Returns a no-op enricher otherwise.
func newEnricher(log *logger.Logger) (*enrich.Enricher, func(context.Context)) {
	client, err := graph.NewFromEnv(log)
	if err != nil {
		log.Warn("knowledge graph unavailable, lessons will not be linked", "error", err)
		return enrich.New(nil, log), func(context.Context) {}
	}
	if client == nil {
		return enrich.New(nil, log), func(context.Context) {}
	}
	return enrich.New(client, log), func(ctx context.Context) { _ = client.Close(ctx) }
}
