package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Detect and correct persona drift",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [persona-id]",
		Short: "Evaluate drift without changing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := rt.engine.CheckDrift(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Drift report for %s\n\n", report.PersonaID)
			fmt.Printf("  Score:      %d/100\n", report.Score)
			fmt.Printf("  Detected:   %v\n", report.Detected)
			fmt.Printf("  Average:    %+.1f over %d observations\n", report.AverageMood, report.Samples)
			fmt.Printf("  Volatility: %.1f\n", report.Volatility)
			for _, indicator := range report.Indicators {
				fmt.Printf("  - %s\n", indicator)
			}
			if report.Recommendation != "" {
				fmt.Printf("\n  %s\n", report.Recommendation)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "correct [persona-id]",
		Short: "Apply corrective action to a drifted persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, corrections, err := rt.engine.Correct(ctx, args[0])
			if err != nil {
				return err
			}
			if !report.Detected {
				fmt.Printf("No drift detected for %s (score %d); nothing to correct.\n",
					report.PersonaID, report.Score)
				return nil
			}

			fmt.Printf("Applied %d corrections to %s (drift score %d):\n",
				len(corrections), report.PersonaID, report.Score)
			for _, c := range corrections {
				switch {
				case c.Added != "":
					fmt.Printf("  - %s: added %q\n", c.Type, c.Added)
				case c.Before != "":
					fmt.Printf("  - %s: %s -> %s\n", c.Type, c.Before, c.After)
				default:
					fmt.Printf("  - %s\n", c.Type)
				}
			}
			return nil
		},
	})

	return cmd
}
