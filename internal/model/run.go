package model

import "time"

// Stage names the pipeline stages in execution order.
type Stage string

const (
	StageScrape          Stage = "scraping"
	StageValidation      Stage = "validation"
	StageEnrichment      Stage = "linkedin_enrichment"
	StageResearch        Stage = "research"
	StagePersonalization Stage = "personalization"
	StageExport          Stage = "export"
)

// RunStatus is the outcome of a stage-execution attempt.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is one immutable audit row per stage-execution attempt.
// Rows are appended in stage-execution order and never updated, giving
// a total order over a campaign's history.
type PipelineRun struct {
	ID           int64     `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	Stage        Stage     `json:"stage"`
	Status       RunStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	Duration     float64   `json:"duration_seconds"`
	Processed    int       `json:"processed_count"`
	Succeeded    int       `json:"success_count"`
	Errored      int       `json:"error_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
