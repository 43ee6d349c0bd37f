package store

import (
	"context"

	"github.com/Marius-prog/Leads-generator/internal/model"
)

// CampaignStats aggregates lead and run history for one campaign.
type CampaignStats struct {
	TotalLeads     int                      `json:"total_leads"`
	ValidEmails    int                      `json:"valid_emails"`
	ValidPhones    int                      `json:"valid_phones"`
	ValidCompanies int                      `json:"valid_companies"`
	EnrichedLeads  int                      `json:"enriched_leads"`
	ByStatus       map[model.LeadStatus]int `json:"by_status"`
	Runs           []model.PipelineRun      `json:"pipeline_runs"`
}

// Store defines the persistence interface for the lead pipeline.
// All operations are durable on return; the store is the single source
// of truth and callers hold no authoritative in-memory copies.
type Store interface {
	// Campaigns
	CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, campaignID string, patch model.CampaignPatch) error
	// GetCampaign returns (nil, nil) when the campaign does not exist.
	GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, limit int) ([]model.Campaign, error)

	// Leads
	InsertLeads(ctx context.Context, leads []model.Lead) error
	// GetLeadsByCampaign filters by status when status is non-empty.
	GetLeadsByCampaign(ctx context.Context, campaignID string, status model.LeadStatus) ([]model.Lead, error)
	UpdateLeadsBatch(ctx context.Context, campaignID string, patches []model.LeadPatch) error

	// Pipeline runs (append-only)
	RecordPipelineRun(ctx context.Context, run model.PipelineRun) error
	GetPipelineRuns(ctx context.Context, campaignID string) ([]model.PipelineRun, error)

	// Aggregates
	GetCampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
