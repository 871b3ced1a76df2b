package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praxislabs/praxis/internal/mood"
)

func newMoodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Record and analyze persona moods",
	}

	cmd.AddCommand(newMoodAddCmd())
	cmd.AddCommand(newMoodAnalyzeCmd())
	return cmd
}

func newMoodAddCmd() *cobra.Command {
	var (
		value    int
		reason   string
		trigger  string
		duration int
	)

	cmd := &cobra.Command{
		Use:   "add [persona-id]",
		Short: "Append a mood observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			obs := &mood.Observation{
				PersonaID:       args[0],
				Value:           value,
				Reason:          reason,
				Trigger:         mood.Trigger{Type: mood.TriggerType(trigger), Source: "cli"},
				ExpectedMinutes: duration,
			}
			if err := rt.engine.AddObservation(ctx, obs); err != nil {
				return err
			}

			fmt.Printf("Recorded mood %+d for %s (%s intensity, holds ~%d min).\n",
				obs.Value, obs.PersonaID, obs.Intensity, obs.ExpectedMinutes)
			return nil
		},
	}

	cmd.Flags().IntVar(&value, "value", 0, "mood value, -100 to 100")
	cmd.Flags().StringVar(&reason, "reason", "", "what caused the change")
	cmd.Flags().StringVar(&trigger, "trigger", string(mood.TriggerManual), "trigger type (conversation, milestone, feedback, time, manual, system)")
	cmd.Flags().IntVar(&duration, "duration", 0, "expected minutes the mood holds (0 uses the default)")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newMoodAnalyzeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "analyze [persona-id]",
		Short: "Analyze a persona's mood over the trailing window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			analysis, err := rt.engine.Analytics(ctx, args[0], days)
			if err != nil {
				return err
			}

			fmt.Printf("Mood analysis for %s (%s to %s)\n\n",
				analysis.PersonaID,
				analysis.TimeRange.Start.Format("2006-01-02"),
				analysis.TimeRange.End.Format("2006-01-02"))
			fmt.Printf("  Current:    %+d\n", analysis.CurrentMood)
			fmt.Printf("  Average:    %+.1f over %d observations\n", analysis.AverageMood, analysis.DataPoints)
			fmt.Printf("  Trend:      %s\n", analysis.Trend)
			fmt.Printf("  Volatility: %.1f\n", analysis.Volatility)

			if len(analysis.Triggers) > 0 {
				fmt.Println()
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  TRIGGER\tCOUNT\tAVG IMPACT")
				for _, t := range analysis.Triggers {
					fmt.Fprintf(w, "  %s\t%d\t%+.1f\n", t.Type, t.Count, t.AvgImpact)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if len(analysis.Insights) > 0 {
				fmt.Println()
				for _, insight := range analysis.Insights {
					fmt.Printf("  * %s\n", insight)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "window in days (0 uses the configured default)")
	return cmd
}
