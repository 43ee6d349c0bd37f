package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Marius-prog/Leads-generator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leads-generator",
	Short: "Local business lead generation pipeline",
	Long:  "Discovers local businesses via Places search, validates their contact data, enriches and researches them, and writes personalized outreach messages.",
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
