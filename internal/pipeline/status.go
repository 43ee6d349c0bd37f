package pipeline

import (
	"context"

	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/store"
)

// CampaignStatus combines the campaign record with its lead and run
// history for status reporting.
type CampaignStatus struct {
	Campaign model.Campaign      `json:"campaign"`
	Stats    store.CampaignStats `json:"stats"`
	Progress float64             `json:"progress_percent"`
}

// Status reports where a campaign currently stands. A missing campaign
// yields (nil, nil) so pollers can distinguish not-found from failure.
func (p *Pipeline) Status(ctx context.Context, campaignID string) (*CampaignStatus, error) {
	campaign, err := p.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, nil
	}

	stats, err := p.store.GetCampaignStats(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignStatus{
		Campaign: *campaign,
		Stats:    *stats,
		Progress: progressPercent(campaign, stats),
	}, nil
}

// progressPercent estimates completion from how far leads have moved
// through the stage sequence.
func progressPercent(campaign *model.Campaign, stats *store.CampaignStats) float64 {
	if campaign.Status == model.CampaignStatusCompleted {
		return 100
	}
	if stats.TotalLeads == 0 {
		return 0
	}

	maxRank := model.LeadStatusPersonalized.Rank()
	sum := 0
	for status, count := range stats.ByStatus {
		rank := status.Rank()
		if rank < 0 {
			continue
		}
		sum += rank * count
	}
	return float64(sum) / float64(maxRank*stats.TotalLeads) * 100
}
