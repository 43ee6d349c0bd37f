package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

// Campaign is one lead-generation job for a query/location/result-count.
// It is created once by the orchestrator and mutated only through
// CampaignPatch updates; rows are never deleted by the pipeline.
type Campaign struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	BusinessType string         `json:"business_type"`
	Location     string         `json:"location"`
	MaxResults   int            `json:"max_results"`
	FromEmail    string         `json:"from_email,omitempty"`
	Status       CampaignStatus `json:"status"`

	TotalLeads        int `json:"total_leads"`
	ValidatedLeads    int `json:"validated_leads"`
	EnrichedLeads     int `json:"enriched_leads"`
	PersonalizedLeads int `json:"personalized_leads"`

	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// CampaignPatch enumerates the mutable campaign fields. Nil fields are
// left untouched, so accidental whole-row writes are impossible.
type CampaignPatch struct {
	Status            *CampaignStatus
	TotalLeads        *int
	ValidatedLeads    *int
	EnrichedLeads     *int
	PersonalizedLeads *int
	ErrorMessage      *string
	CompletedAt       *time.Time
}

// Empty reports whether the patch would change nothing.
func (p CampaignPatch) Empty() bool {
	return p.Status == nil && p.TotalLeads == nil && p.ValidatedLeads == nil &&
		p.EnrichedLeads == nil && p.PersonalizedLeads == nil &&
		p.ErrorMessage == nil && p.CompletedAt == nil
}
