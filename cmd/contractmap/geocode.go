package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/david/contract-map/internal/geo"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Inspect and correct the coordinate cache",
}

var geocodeResolveCmd = &cobra.Command{
	Use:   "resolve CITY STATE",
	Short: "Resolve a city through the cache and the external geocoder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		g := geo.NewGeocoder(geo.NewCache(store), provider(false), cfg.Geocoder.Interval)
		c := g.Resolve(cmd.Context(), args[0], args[1])
		stats := g.Stats()

		source := "cache"
		switch {
		case stats.Fallbacks > 0:
			source = "fallback centroid"
		case stats.ExternalCalls > 0:
			source = "geocoder"
		}
		fmt.Printf("%s, %s\t%s\t(%s)\n", args[0], geo.NormalizeState(args[1]), c, source)
		return nil
	},
}

var geocodeForgetCmd = &cobra.Command{
	Use:   "forget CITY STATE",
	Short: "Remove a cached city so the next refresh geocodes it again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		removed, err := geo.NewCache(store).Forget(cmd.Context(), args[0], args[1])
		if errors.Is(err, geo.ErrSeedEntry) {
			fmt.Printf("%s, %s comes from the built-in seed table; correct it with `geocode set`\n", args[0], args[1])
			return nil
		}
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("%s, %s was not in the cache\n", args[0], args[1])
			return nil
		}
		fmt.Printf("Forgot %s, %s\n", args[0], args[1])
		return nil
	},
}

var geocodeSetCmd = &cobra.Command{
	Use:   "set CITY STATE LAT LNG",
	Short: "Store a manual correction for a city",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: %w", args[2], err)
		}
		lng, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: %w", args[3], err)
		}
		c := geo.Coordinates{Lat: lat, Lng: lng}
		if !c.Valid() {
			return fmt.Errorf("coordinates %s out of range", c)
		}

		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		return store.SaveCoordinates(cmd.Context(), geo.Entry{
			State: args[1], City: args[0], Coordinates: c, Origin: geo.OriginManual, ResolvedAt: time.Now(),
		})
	},
}

var geocodeListState string

var geocodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted coordinates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		entries, err := store.ListCoordinates(cmd.Context(), geocodeListState)
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"State", "City", "Lat", "Lng", "Origin", "Resolved"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.State, e.City, e.Coordinates.Lat, e.Coordinates.Lng, e.Origin, e.ResolvedAt.Format("2006-01-02")})
		}
		t.Render()
		return nil
	},
}

func init() {
	geocodeListCmd.Flags().StringVar(&geocodeListState, "state", "", "only this state")
	geocodeCmd.AddCommand(geocodeResolveCmd, geocodeForgetCmd, geocodeSetCmd, geocodeListCmd)
	rootCmd.AddCommand(geocodeCmd)
}
