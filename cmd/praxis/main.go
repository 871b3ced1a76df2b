// Package main is the entry point for the praxis CLI: the persona
// response service and its operational commands.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/praxislabs/praxis/internal/bus"
	"github.com/praxislabs/praxis/internal/config"
	"github.com/praxislabs/praxis/internal/data"
	"github.com/praxislabs/praxis/internal/drift"
	"github.com/praxislabs/praxis/internal/engine"
	"github.com/praxislabs/praxis/internal/llm"
	"github.com/praxislabs/praxis/internal/logging"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "praxis",
		Short: "Praxis - persona response engine for project simulations",
		Long: `Praxis serves the simulated teammates students work with: cached
persona responses, a mood ledger, tone adaptation, and drift control.

Run the service:     praxis serve
Inspect a persona:   praxis persona show <id>
Live dashboard:      praxis monitor`,
		PersistentPreRunE: initLogging,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.praxis/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Praxis v%s\n", version)
		},
	})
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPersonaCmd())
	rootCmd.AddCommand(newMoodCmd())
	rootCmd.AddCommand(newDriftCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	loadEnv()

	lcfg := logging.DefaultConfig()
	if verbose {
		lcfg = logging.VerboseConfig()
	}
	return logging.Setup(lcfg)
}

// loadEnv pulls provider keys and PRAXIS_* overrides from .env files so
// one-off commands work without exporting anything. Existing environment
// variables win.
func loadEnv() {
	_ = godotenv.Load()
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".praxis", ".env"))
	}
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// runtime bundles the wired components behind every command.
type runtime struct {
	cfg      *config.Config
	bus      *bus.Bus
	personas *persona.SQLiteStore
	ledger   *mood.SQLiteLedger
	engine   *engine.Engine
}

// initializeEngine wires the full stack: config, database, stores,
// generation provider, engine. The returned cleanup closes everything
// and must be called exactly once.
func initializeEngine(ctx context.Context) (*runtime, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	db, err := data.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	personas := persona.NewSQLiteStore(db)
	ledger := mood.NewSQLiteLedger(db)
	if err := persona.SeedBuiltIns(ctx, personas); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("seed built-in personas: %w", err)
	}
	if cfg.Personas.Dir != "" {
		created, updated, err := persona.ImportDir(ctx, personas, cfg.Personas.Dir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.Personas.Dir).Msg("persona definitions not fully imported")
		} else if created+updated > 0 {
			log.Debug().Int("created", created).Int("updated", updated).Msg("imported persona definitions")
		}
	}

	provider, err := llm.New(cfg.Generation)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	b := bus.New()
	eng, err := engine.New(engine.Options{
		Personas:     personas,
		Ledger:       ledger,
		Provider:     provider,
		Bus:          b,
		Corrector:    drift.NewCorrector(db, personas, ledger),
		CacheEntries: cfg.Cache.MaxEntries,
		CacheTTL:     cfg.Cache.TTL(),
		WindowDays:   cfg.Mood.AnalyticsWindowDays,
	})
	if err != nil {
		_ = b.Close()
		_ = db.Close()
		return nil, nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		bus:      b,
		personas: personas,
		ledger:   ledger,
		engine:   eng,
	}
	cleanup := func() {
		_ = b.Close()
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("closing database")
		}
	}
	return rt, cleanup, nil
}
