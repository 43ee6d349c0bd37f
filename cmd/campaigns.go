package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Marius-prog/Leads-generator/internal/pipeline"
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Inspect campaigns",
}

var campaignsListLimit int

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		campaigns, err := st.ListCampaigns(ctx, campaignsListLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tLEADS\tVALIDATED\tPERSONALIZED\tCREATED")
		for _, c := range campaigns {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				c.ID, c.Name, c.Status, c.TotalLeads, c.ValidatedLeads, c.PersonalizedLeads,
				c.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var campaignsStatusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show a campaign's progress and stage history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		// status is read-only, no API clients needed
		p, err := pipeline.New(cfg, st, nil, nil, nil)
		if err != nil {
			return err
		}

		status, err := p.Status(ctx, args[0])
		if err != nil {
			return err
		}
		if status == nil {
			return eris.Errorf("campaign not found: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

func init() {
	campaignsListCmd.Flags().IntVar(&campaignsListLimit, "limit", 50, "maximum campaigns to list")
	campaignsCmd.AddCommand(campaignsListCmd)
	campaignsCmd.AddCommand(campaignsStatusCmd)
	rootCmd.AddCommand(campaignsCmd)
}
