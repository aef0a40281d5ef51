package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/david/contract-map/internal/config"
	"github.com/david/contract-map/internal/db"
	"github.com/david/contract-map/internal/ingest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "contractmap",
	Short: "Federal infrastructure contract ingestion",
	Long: `
contractmap pulls active opportunities from SAM.gov, geocodes and classifies
them, and publishes the result as the snapshot served by the API.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		cfg = config.Load()
		cfg.ConfigureLogging()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.WithField("component", "cli").Error(err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the refresh error taxonomy onto distinct process exit codes.
func exitCode(err error) int {
	var re *ingest.RefreshError
	if !errors.As(err, &re) {
		return 1
	}
	switch re.Kind {
	case ingest.KindConfiguration:
		return 2
	case ingest.KindUpstream:
		return 3
	case ingest.KindStorage:
		return 4
	default:
		return 1
	}
}

func openStore(ctx context.Context) (*db.Store, func(), error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(pool), pool.Close, nil
}
