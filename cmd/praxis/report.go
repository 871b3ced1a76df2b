package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/praxislabs/praxis/internal/drift"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
)

const reportWrap = 100

func newReportCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "report [persona-id]",
		Short: "Render a full persona health report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := rt.personas.Get(ctx, args[0])
			if err != nil {
				return err
			}
			analysis, err := rt.engine.Analytics(ctx, p.ID, days)
			if err != nil {
				return err
			}
			consistency, err := rt.engine.Consistency(ctx, p.ID)
			if err != nil {
				return err
			}
			driftReport, err := rt.engine.CheckDrift(ctx, p.ID)
			if err != nil {
				return err
			}
			corrections, err := rt.engine.CorrectionHistory(ctx, p.ID, 10)
			if err != nil {
				return err
			}

			md := buildReportMarkdown(p, analysis, consistency, driftReport, corrections)

			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(reportWrap),
			)
			if err != nil {
				fmt.Print(md)
				return nil
			}
			out, err := renderer.Render(md)
			if err != nil {
				fmt.Print(md)
				return nil
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "window in days (0 uses the configured default)")
	return cmd
}

func buildReportMarkdown(p *persona.Persona, analysis *mood.Analysis,
	consistency *drift.ConsistencyReport, report *drift.Report,
	corrections []*drift.Correction) string {

	var b strings.Builder

	fmt.Fprintf(&b, "# %s: persona report\n\n", p.Name)
	fmt.Fprintf(&b, "%s. Traits: %s.\n\n", p.Role, strings.Join(p.Traits, ", "))

	fmt.Fprintf(&b, "## Mood (%s to %s)\n\n",
		analysis.TimeRange.Start.Format("2006-01-02"),
		analysis.TimeRange.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Current | %+d |\n", analysis.CurrentMood)
	fmt.Fprintf(&b, "| Average | %+.1f |\n", analysis.AverageMood)
	fmt.Fprintf(&b, "| Trend | %s |\n", analysis.Trend)
	fmt.Fprintf(&b, "| Volatility | %.1f |\n", analysis.Volatility)
	fmt.Fprintf(&b, "| Observations | %d |\n\n", analysis.DataPoints)

	for _, insight := range analysis.Insights {
		fmt.Fprintf(&b, "- %s\n", insight)
	}
	if len(analysis.Insights) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Consistency: %d/100\n\n", consistency.Score)
	for _, check := range consistency.Checks {
		mark := "PASS"
		if !check.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "- **%s** %s: %s\n", mark, check.Name, check.Detail)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Drift: %d/100\n\n", report.Score)
	if report.Detected {
		fmt.Fprintf(&b, "Drift detected. %s\n\n", report.Recommendation)
	} else {
		b.WriteString("No drift detected.\n\n")
	}
	for _, indicator := range report.Indicators {
		fmt.Fprintf(&b, "- %s\n", indicator)
	}
	if len(report.Indicators) > 0 {
		b.WriteString("\n")
	}

	if len(corrections) > 0 {
		b.WriteString("## Recent corrections\n\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- %s %s: %s\n",
				c.CreatedAt.Format("2006-01-02"), c.Type, c.Reason)
		}
	}

	return b.String()
}
