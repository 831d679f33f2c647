package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraplan/siteplan/internal/batch"
)

var (
	batchInput  string
	batchOutput string
)

// batchFile is the on-disk request format for the batch command.
type batchFile struct {
	Points []batch.Point `json:"points"`
	Start  string        `json:"start,omitempty"`
	End    string        `json:"end,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score a file of points in one run",
	Long:  "Reads a JSON file with a points array (lat, lon, optional structure_type and overrides) and optional start/end dates, scores every point and writes the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(batchInput)
		if err != nil {
			return eris.Wrap(err, "batch: read input")
		}

		var req batchFile
		if err := json.Unmarshal(raw, &req); err != nil {
			return eris.Wrap(err, "batch: parse input")
		}
		if len(req.Points) == 0 {
			return eris.New("batch: input has no points")
		}

		dr, err := parseDateRange(req.Start, req.End)
		if err != nil {
			return err
		}

		env, err := initApp()
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Batch.ScoreBatch(cmd.Context(), req.Points, dr)
		if err != nil {
			return err
		}

		zap.L().Info("batch complete",
			zap.String("batch_id", res.BatchID),
			zap.Int("scored", len(res.Results)),
			zap.Int("warnings", len(res.Warnings)),
		)

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return eris.Wrap(err, "batch: encode results")
		}
		out = append(out, '\n')

		if batchOutput == "" {
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		if err := os.WriteFile(batchOutput, out, 0o644); err != nil {
			return eris.Wrap(err, "batch: write output")
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "JSON file of points to score (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write results to this file instead of stdout")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}
