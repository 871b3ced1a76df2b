package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/praxislabs/praxis/internal/engine"
	"github.com/praxislabs/praxis/internal/logging"
	"github.com/praxislabs/praxis/internal/metrics"
	"github.com/praxislabs/praxis/internal/persona"
	"github.com/praxislabs/praxis/internal/scheduler"
	"github.com/praxislabs/praxis/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the persona response service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// Re-apply logging with the service settings; --verbose still wins.
			lcfg := logging.Config{Level: rt.cfg.Logging.Level, Console: true, FilePath: rt.cfg.Logging.File}
			if verbose {
				lcfg.Level = "debug"
			}
			if err := logging.Setup(lcfg); err != nil {
				return err
			}

			if addr != "" {
				rt.cfg.Server.Addr = addr
			}

			collector := metrics.NewCollector(rt.bus)
			collector.Start()
			defer collector.Stop()

			bookkeeper := engine.NewBookkeeper(rt.bus, rt.ledger, rt.personas)
			bookkeeper.Start()
			defer bookkeeper.Stop()

			sched, err := scheduler.New(scheduler.Options{
				Engine:             rt.engine,
				Ledger:             rt.ledger,
				Bus:                rt.bus,
				RetirementSchedule: rt.cfg.Mood.RetirementSchedule,
				PatrolSchedule:     rt.cfg.Drift.PatrolSchedule,
				AutoCorrect:        rt.cfg.Drift.AutoCorrect,
			})
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if rt.cfg.Personas.Watch && rt.cfg.Personas.Dir != "" {
				watcher, err := persona.NewWatcher(rt.personas, rt.cfg.Personas.Dir)
				if err != nil {
					return fmt.Errorf("watch persona directory: %w", err)
				}
				if err := watcher.Start(ctx); err != nil {
					return fmt.Errorf("watch persona directory: %w", err)
				}
				defer watcher.Stop()
			}

			srv := server.New(rt.cfg.Server, rt.engine, rt.bus)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().
					Str("addr", rt.cfg.Server.Addr).
					Str("db", rt.cfg.Database.Path).
					Str("provider", rt.cfg.Generation.DefaultProvider).
					Msg("praxis listening")
				return srv.Start()
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(),
					time.Duration(rt.cfg.Server.ShutdownTimeoutSec)*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
