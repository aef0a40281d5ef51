package main

import (
	"os"

	"github.com/david/contract-map/internal/geo"
	"github.com/david/contract-map/internal/ingest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	previewLimit   int
	previewState   string
	previewOffline bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch and normalize one query without publishing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := ingest.NewPipeline(cfg, ingest.NewSAMClient(cfg.SAM), nil, nil, nil, geo.NewCache(nil), provider(previewOffline))
		p.Progress = progress("Normalizing")

		contracts, err := p.Preview(cmd.Context(), ingest.PreviewOptions{Limit: previewLimit, State: previewState})
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Title", "Value", "Location", "Category", "Due"})
		for _, c := range contracts {
			t.AppendRow(table.Row{c.ID, ingest.TruncateText(c.Title, 48), c.Value, c.Location, c.Category, c.DueDate})
		}
		t.AppendFooter(table.Row{"", "", "", "", "Total", len(contracts)})
		t.Render()
		return nil
	},
}

func init() {
	previewCmd.Flags().IntVar(&previewLimit, "limit", ingest.DefaultPreviewLimit, "maximum records to fetch")
	previewCmd.Flags().StringVar(&previewState, "state", "", "restrict the query to one state code")
	previewCmd.Flags().BoolVar(&previewOffline, "offline", true, "skip the external geocoder")
	rootCmd.AddCommand(previewCmd)
}
