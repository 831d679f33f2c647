package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/signal"
)

var (
	signalsLat   float64
	signalsLon   float64
	signalsStart string
	signalsEnd   string
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Fetch the raw signal bundle for a coordinate",
	Long:  "Fetches climate, vegetation, population and proximity signals without scoring them, for inspecting what a score would be based on.",
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := geo.NewCoordinate(signalsLat, signalsLon)
		if err != nil {
			return err
		}
		dr, err := parseDateRange(signalsStart, signalsEnd)
		if err != nil {
			return err
		}

		env, err := initApp()
		if err != nil {
			return err
		}
		defer env.Close()

		bundle := env.Fetcher.Fetch(cmd.Context(), coord, dr, signal.Overrides{})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	},
}

func init() {
	signalsCmd.Flags().Float64Var(&signalsLat, "lat", 0, "latitude (required)")
	signalsCmd.Flags().Float64Var(&signalsLon, "lon", 0, "longitude (required)")
	signalsCmd.Flags().StringVar(&signalsStart, "start", "", "range start (YYYY-MM-DD)")
	signalsCmd.Flags().StringVar(&signalsEnd, "end", "", "range end (YYYY-MM-DD)")
	_ = signalsCmd.MarkFlagRequired("lat")
	_ = signalsCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(signalsCmd)
}
