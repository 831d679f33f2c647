package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/scoring"
	"github.com/terraplan/siteplan/internal/signal"
)

var (
	scoreLat        float64
	scoreLon        float64
	scoreType       string
	scoreStart      string
	scoreEnd        string
	scoreNDVI       float64
	scorePopulation int
	scoreRoadKm     float64
	scoreWaterKm    float64
	scoreFormat     string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single coordinate for a structure type",
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := geo.NewCoordinate(scoreLat, scoreLon)
		if err != nil {
			return err
		}
		st, err := scoring.ParseStructureType(scoreType)
		if err != nil {
			return err
		}
		dr, err := parseDateRange(scoreStart, scoreEnd)
		if err != nil {
			return err
		}

		var ov signal.Overrides
		if cmd.Flags().Changed("ndvi") {
			ov.NDVI = &scoreNDVI
		}
		if cmd.Flags().Changed("population") {
			ov.Population = &scorePopulation
		}
		if cmd.Flags().Changed("road-km") {
			ov.RoadKm = &scoreRoadKm
		}
		if cmd.Flags().Changed("water-km") {
			ov.WaterKm = &scoreWaterKm
		}

		env, err := initApp()
		if err != nil {
			return err
		}
		defer env.Close()

		bundle := env.Fetcher.Fetch(cmd.Context(), coord, dr, ov)
		result := scoring.Score(bundle, st)

		return printResult(cmd, coord, result)
	},
}

func printResult(cmd *cobra.Command, coord geo.Coordinate, res scoring.Result) error {
	out := cmd.OutOrStdout()

	if scoreFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
			scoring.Result
		}{coord.Lat, coord.Lon, res})
	}

	fmt.Fprintf(out, "Location:   %s\n", coord)
	fmt.Fprintf(out, "Structure:  %s\n", res.StructureType)
	fmt.Fprintf(out, "Score:      %.2f\n\n", res.Score)
	for _, name := range []string{
		signal.NameTemperature,
		signal.NamePrecipitation,
		signal.NameVegetation,
		signal.NamePopulation,
		signal.NameRoad,
		signal.NameWater,
	} {
		fmt.Fprintf(out, "  %-15s %6.2f\n", name, res.SubScores[name])
	}
	if len(res.Fallbacks) > 0 {
		fmt.Fprintf(out, "\nDefaults used: %s\n", strings.Join(res.Fallbacks, ", "))
	}
	if len(res.Bundle.Fallbacks) > 0 {
		fmt.Fprintf(out, "Degraded fetches: %s\n", strings.Join(res.Bundle.Fallbacks, ", "))
	}
	return nil
}

func init() {
	scoreCmd.Flags().Float64Var(&scoreLat, "lat", 0, "latitude (required)")
	scoreCmd.Flags().Float64Var(&scoreLon, "lon", 0, "longitude (required)")
	scoreCmd.Flags().StringVar(&scoreType, "type", "generic", "structure type (hospital, school, park, water, house, generic)")
	scoreCmd.Flags().StringVar(&scoreStart, "start", "", "range start (YYYY-MM-DD, default 30 days ago)")
	scoreCmd.Flags().StringVar(&scoreEnd, "end", "", "range end (YYYY-MM-DD, default today)")
	scoreCmd.Flags().Float64Var(&scoreNDVI, "ndvi", 0, "pin the vegetation index instead of fetching it")
	scoreCmd.Flags().IntVar(&scorePopulation, "population", 0, "pin the population estimate instead of fetching it")
	scoreCmd.Flags().Float64Var(&scoreRoadKm, "road-km", 0, "pin the road distance instead of fetching it")
	scoreCmd.Flags().Float64Var(&scoreWaterKm, "water-km", 0, "pin the water distance instead of fetching it")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "table", "output format (table or json)")
	_ = scoreCmd.MarkFlagRequired("lat")
	_ = scoreCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(scoreCmd)
}
