package main

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent refresh runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		runs, err := store.RecentRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Trigger", "Status", "Regions", "Fetched", "Published", "Geocoded", "Fallbacks", "Duration", "Started At", "Error"})
		for _, r := range runs {
			duration := "Running..."
			if r.CompletedAt != nil {
				duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
			}
			t.AppendRow(table.Row{
				r.Trigger, r.Status, r.Regions, r.Fetched, r.Published, r.GeocodeCalls, r.GeocodeFallbacks,
				duration, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Error,
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
