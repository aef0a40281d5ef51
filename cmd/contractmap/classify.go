package main

import (
	"os"

	"github.com/david/contract-map/internal/category"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify CODE...",
	Short: "Show the category assigned to NAICS or PSC codes",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		c := category.Default()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "Category"})
		for _, code := range args {
			t.AppendRow(table.Row{code, c.Classify(code)})
		}
		t.Render()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		return store.Migrate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd, migrateCmd)
}
