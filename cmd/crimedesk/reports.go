package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/internal/web"
)

func newReportsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect and export filed reports",
	}
	cmd.PersistentFlags().String("data-file", "", "Path of the data snapshot")
	cmd.PersistentFlags().StringP("query", "q", "", "Only reports matching this text")
	cmd.AddCommand(newReportsListCmd(load), newReportsExportCmd(load))
	return cmd
}

func newReportsListCmd(load loader) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DataFile)
			if err != nil {
				return err
			}
			defer st.Close()

			q, _ := cmd.Flags().GetString("query")
			result := st.Search(cmd.Context(), store.Query{Text: q, Page: page, PageSize: cfg.PageSize})

			cmd.Println(titleStyle.Render("Reports"))
			cmd.Println(mutedStyle.Render(fmt.Sprintf("%d total, %d pending, %d investigating, %d resolved",
				result.Totals.Total, result.Totals.Pending, result.Totals.Investigating, result.Totals.Resolved)))
			if len(result.Reports) == 0 {
				cmd.Println(mutedStyle.Render("No reports found."))
				return nil
			}

			t := newTable(
				column{"ID", 6},
				column{"USER", 14},
				column{"TYPE", 16},
				column{"LOCATION", 20},
				column{"STATUS", 15},
				column{"FILED", 17},
			)
			for _, l := range result.Reports {
				t.row(fmt.Sprint(l.ID), l.Username, l.CrimeType, l.Location, l.Status, l.Timestamp.Format(timeLayout))
			}
			cmd.Print(t.String())
			if result.TotalPages > 1 {
				cmd.Println(mutedStyle.Render(fmt.Sprintf("Page %d of %d", result.Page, result.TotalPages)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	return cmd
}

func newReportsExportCmd(load loader) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching reports as CSV",
		Example: `  crimedesk reports export --output reports.csv
  crimedesk reports export -q theft`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DataFile)
			if err != nil {
				return err
			}
			defer st.Close()

			q, _ := cmd.Flags().GetString("query")
			rows := st.Export(cmd.Context(), q)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := web.WriteCSV(w, rows); err != nil {
				return fmt.Errorf("writing csv: %w", err)
			}
			if output != "" && output != "-" {
				cmd.PrintErrf("%s Exported %d reports to %s\n", successStyle.Render("✓"), len(rows), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
