package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/praxislabs/praxis/internal/logging"
	"github.com/praxislabs/praxis/internal/metrics"
	"github.com/praxislabs/praxis/internal/tui"
)

func newMonitorCmd() *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live dashboard of persona health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// The dashboard owns the terminal, so logs move to a file.
			logDir := filepath.Join(rt.cfg.GetDataDir(), "logs")
			if path, err := logging.RedirectToFile(logDir, "monitor"); err == nil {
				log.Debug().Str("path", path).Msg("monitor logs redirected")
			}

			lipgloss.SetColorProfile(termenv.ColorProfile())

			collector := metrics.NewCollector(rt.bus)
			collector.Start()
			defer collector.Stop()

			return tui.Run(rt.engine, collector, refresh)
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 5*time.Second, "dashboard refresh interval")
	return cmd
}
