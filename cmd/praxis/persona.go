package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praxislabs/praxis/internal/persona"
)

func newPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "persona",
		Aliases: []string{"p"},
		Short:   "Manage personas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			personas, err := rt.personas.List(ctx)
			if err != nil {
				return fmt.Errorf("list personas: %w", err)
			}
			if len(personas) == 0 {
				fmt.Println("No personas found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tMOOD\tTRAITS\tBUILT-IN")
			for _, p := range personas {
				builtIn := ""
				if p.IsBuiltIn {
					builtIn = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%+d\t%s\t%s\n",
					p.ID, p.Name, p.Role, p.CurrentMood,
					strings.Join(p.Traits, ", "), builtIn)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Show one persona in full",
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

			fmt.Printf("%s (%s)\n", p.Name, p.ID)
			fmt.Printf("  Role:       %s\n", p.Role)
			if p.Background != "" {
				fmt.Printf("  Background: %s\n", p.Background)
			}
			fmt.Printf("  Traits:     %s\n", strings.Join(p.Traits, ", "))
			if len(p.Values) > 0 {
				fmt.Printf("  Values:     %s\n", strings.Join(p.Values, ", "))
			}
			fmt.Printf("  Style:      %s communication, %s decisions, %s replies\n",
				p.Style.Communication, styleOr(p.Style.DecisionMaking), styleOr(p.Style.Verbosity))
			fmt.Printf("  Mood:       %+d now, %+d baseline\n", p.CurrentMood, p.BaselineMood)
			if p.IsBuiltIn {
				fmt.Println("  Built-in:   yes")
			}
			fmt.Printf("  Updated:    %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import [path]",
		Short: "Import persona definitions from a YAML file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, cleanup, err := initializeEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			if info.IsDir() {
				created, updated, err := persona.ImportDir(ctx, rt.personas, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d personas (%d created, %d updated).\n",
					created+updated, created, updated)
				return nil
			}

			p, wasCreated, err := persona.ImportFile(ctx, rt.personas, args[0])
			if err != nil {
				return err
			}
			verb := "Updated"
			if wasCreated {
				verb = "Created"
			}
			fmt.Printf("%s persona %s (%s).\n", verb, p.Name, p.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate persona definitions without importing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			if info.IsDir() {
				personas, err := persona.LoadDir(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("OK: %d persona definitions are valid.\n", len(personas))
				return nil
			}

			p, err := persona.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("OK: %s (%s) is valid.\n", p.Name, p.ID)
			return nil
		},
	})

	return cmd
}

// styleOr substitutes the unset marker for optional style fields.
func styleOr(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}
