package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraplan/siteplan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "siteplan",
	Short: "Geographic suitability scoring for structure placement",
	Long:  "Scores coordinates for hospital, school, park, water, house or generic placement using climate, vegetation, population and infrastructure-proximity signals from public geodata services.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
