package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Marius-prog/Leads-generator/internal/export"
)

var exportFlags struct {
	format string
	dir    string
}

var exportCmd = &cobra.Command{
	Use:   "export <campaign-id>",
	Short: "Export a campaign's leads to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		campaign, err := st.GetCampaign(ctx, args[0])
		if err != nil {
			return err
		}
		if campaign == nil {
			return eris.Errorf("campaign not found: %s", args[0])
		}

		format, err := export.ParseFormat(exportFlags.format)
		if err != nil {
			return err
		}

		leads, err := st.GetLeadsByCampaign(ctx, campaign.ID, "")
		if err != nil {
			return err
		}

		dir := exportFlags.dir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		path, err := export.New(dir).Export(*campaign, leads, format)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d leads to %s\n", len(leads), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "csv", "output format: csv, json, or xlsx")
	exportCmd.Flags().StringVar(&exportFlags.dir, "dir", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
