package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Marius-prog/Leads-generator/internal/pipeline"
)

var runFlags struct {
	name         string
	businessType string
	location     string
	maxResults   int
	fromEmail    string
	campaignID   string
	mock         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for a campaign",
	Long:  "Creates a campaign (or reuses --campaign-id) and runs scrape, validation, enrichment, research, personalization, and export.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFlags.mock {
			cfg.Pipeline.Mock = true
		}

		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var summary *pipeline.Summary
		if runFlags.campaignID != "" {
			summary, err = e.Pipeline.Run(ctx, runFlags.campaignID)
		} else {
			summary, err = e.Pipeline.Generate(ctx, pipeline.Request{
				Name:         runFlags.name,
				BusinessType: runFlags.businessType,
				Location:     runFlags.location,
				MaxResults:   runFlags.maxResults,
				FromEmail:    runFlags.fromEmail,
			})
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if runFlags.campaignID == "" && (runFlags.businessType == "" || runFlags.location == "") {
			return eris.New("either --campaign-id or both --business-type and --location are required")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.name, "name", "", "campaign name (default derived from type and location)")
	runCmd.Flags().StringVar(&runFlags.businessType, "business-type", "", "kind of business to search for, e.g. restaurants")
	runCmd.Flags().StringVar(&runFlags.location, "location", "", "where to search, e.g. \"Seattle, WA\"")
	runCmd.Flags().IntVar(&runFlags.maxResults, "max-results", 20, "maximum number of businesses to collect")
	runCmd.Flags().StringVar(&runFlags.fromEmail, "from-email", "", "sender address used in outreach messages")
	runCmd.Flags().StringVar(&runFlags.campaignID, "campaign-id", "", "re-run an existing campaign instead of creating one")
	runCmd.Flags().BoolVar(&runFlags.mock, "mock", false, "run with generated data, no API keys needed")
	rootCmd.AddCommand(runCmd)
}
