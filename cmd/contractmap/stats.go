package main

import (
	"os"

	"github.com/david/contract-map/internal/category"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report field coverage of the published snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		stats, err := store.SnapshotStats(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Metric", "Count"})
		t.AppendRows([]table.Row{
			{"Total contracts", stats.Total},
			{"With value", stats.WithValue},
			{"With due date", stats.WithDueDate},
			{"With contact", stats.WithContact},
			{"Unknown location", stats.Unlocated},
		})
		t.AppendSeparator()
		for _, c := range category.All() {
			t.AppendRow(table.Row{string(c), stats.ByCategory[string(c)]})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
