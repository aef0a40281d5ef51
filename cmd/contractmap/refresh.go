package main

import (
	"fmt"
	"os"

	"github.com/david/contract-map/internal/geo"
	"github.com/david/contract-map/internal/ingest"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var refreshOffline bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one ingestion cycle and replace the published snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		p := ingest.NewPipeline(cfg, ingest.NewSAMClient(cfg.SAM), store, store, store, geo.NewCache(store), provider(refreshOffline))
		p.Progress = progress("Normalizing")

		result, err := p.Refresh(ctx, "cli")
		if err != nil {
			return err
		}
		fmt.Printf("Published %d contracts in %dms (run %s)\n", result.ContractsUpdated, result.ProcessingTimeMs, result.RunID)
		return nil
	},
}

func provider(offline bool) geo.Provider {
	if offline {
		return nil
	}
	return geo.NewNominatimClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout)
}

// progress returns a pipeline progress callback drawing a bar on stderr, or
// nil when stderr is not a terminal.
func progress(description string) func(done, total int) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshOffline, "offline", false, "skip the external geocoder and use cached or centroid coordinates")
	rootCmd.AddCommand(refreshCmd)
}
