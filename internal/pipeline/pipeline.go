// Package pipeline orchestrates the lead-generation stages for a
// campaign: scrape, validation, enrichment, research, personalization,
// and export.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Marius-prog/Leads-generator/internal/config"
	"github.com/Marius-prog/Leads-generator/internal/export"
	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/store"
	"github.com/Marius-prog/Leads-generator/internal/validate"
	"github.com/Marius-prog/Leads-generator/pkg/anthropic"
	"github.com/Marius-prog/Leads-generator/pkg/perplexity"
	"github.com/Marius-prog/Leads-generator/pkg/places"
)

// Pipeline runs all stages for one campaign at a time.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	places     places.Client
	perplexity perplexity.Client
	anthropic  anthropic.Client
	validator  *validate.Validator
	exporter   *export.Exporter
	templates  *TemplateSet
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	placesClient places.Client,
	pplxClient perplexity.Client,
	aiClient anthropic.Client,
) (*Pipeline, error) {
	templates, err := LoadTemplates(cfg.Pipeline.TemplatesPath)
	if err != nil {
		return nil, err
	}

	validator := validate.New(
		validate.WithWorkers(cfg.Pipeline.Workers),
		validate.WithRateLimit(cfg.Validation.RatePerSecond),
		validate.WithPhoneRegion(cfg.Validation.PhoneRegion),
		validate.WithEmailChecker(validate.NewEmailChecker(time.Duration(cfg.Validation.DNSTimeoutSecs)*time.Second)),
		validate.WithCompanyChecker(validate.NewCompanyChecker(time.Duration(cfg.Validation.WebsiteTimeoutSecs)*time.Second)),
	)

	return &Pipeline{
		cfg:        cfg,
		store:      st,
		places:     placesClient,
		perplexity: pplxClient,
		anthropic:  aiClient,
		validator:  validator,
		exporter:   export.New(cfg.Export.Dir),
		templates:  templates,
	}, nil
}

// StageResult reports one stage's outcome in a run summary.
type StageResult struct {
	Stage     model.Stage `json:"stage"`
	Skipped   bool        `json:"skipped,omitempty"`
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Errored   int         `json:"errored"`
	Duration  float64     `json:"duration_seconds"`
}

// Summary is the result of a full pipeline run. Status is always
// completed; failed runs return an error instead of a Summary.
type Summary struct {
	CampaignID        string               `json:"campaign_id"`
	Status            model.CampaignStatus `json:"status"`
	Stages            []StageResult        `json:"stages"`
	TotalLeads        int                  `json:"total_leads"`
	ValidatedLeads    int                  `json:"validated_leads"`
	EnrichedLeads     int                  `json:"enriched_leads"`
	PersonalizedLeads int                  `json:"personalized_leads"`
	ExportPath        string               `json:"export_path,omitempty"`
	Duration          float64              `json:"duration_seconds"`
}

// stageCounts is what each stage function reports back. noop means the
// stage found no leads at the prior status; it leaves no audit row.
type stageCounts struct {
	processed int
	succeeded int
	errored   int
	noop      bool
}

// Request describes a new campaign to create and run.
type Request struct {
	Name         string `json:"name"`
	BusinessType string `json:"business_type"`
	Location     string `json:"location"`
	MaxResults   int    `json:"max_results"`
	FromEmail    string `json:"from_email"`
}

// Generate validates the request, creates a campaign for it, and runs
// every stage. Invalid requests are rejected before any row is written.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Summary, error) {
	if strings.TrimSpace(req.BusinessType) == "" {
		return nil, eris.New("pipeline: business type is required")
	}
	if strings.TrimSpace(req.Location) == "" {
		return nil, eris.New("pipeline: location is required")
	}
	if req.MaxResults <= 0 {
		return nil, eris.New("pipeline: max results must be positive")
	}
	if req.Name == "" {
		req.Name = req.BusinessType + " in " + req.Location
	}

	campaign, err := p.store.CreateCampaign(ctx, model.Campaign{
		Name:         req.Name,
		BusinessType: req.BusinessType,
		Location:     req.Location,
		MaxResults:   req.MaxResults,
		FromEmail:    req.FromEmail,
	})
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, campaign.ID)
}

// Run executes all stages for the campaign. The campaign must not
// already be running; a failed campaign may be re-run.
func (p *Pipeline) Run(ctx context.Context, campaignID string) (*Summary, error) {
	campaign, err := p.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, eris.Errorf("pipeline: campaign not found: %s", campaignID)
	}
	switch campaign.Status {
	case model.CampaignStatusRunning:
		return nil, eris.Errorf("pipeline: campaign %s is already running", campaignID)
	case model.CampaignStatusCompleted:
		return nil, eris.Errorf("pipeline: campaign %s already completed", campaignID)
	}

	log := zap.L().With(
		zap.String("campaign_id", campaign.ID),
		zap.String("business_type", campaign.BusinessType),
		zap.String("location", campaign.Location),
	)
	log.Info("pipeline: starting run")

	setStatus := func(status model.CampaignStatus, patch model.CampaignPatch) {
		patch.Status = &status
		if err := p.store.UpdateCampaign(ctx, campaign.ID, patch); err != nil {
			log.Warn("pipeline: failed to update campaign status", zap.Error(err))
		}
	}
	setStatus(model.CampaignStatusRunning, model.CampaignPatch{})

	summary := &Summary{CampaignID: campaign.ID}
	runStart := time.Now()

	// trackStage runs one stage, appends its audit row, and records
	// the outcome in the summary. Audit rows are append-only, so the
	// run history stays a total order over stage executions.
	trackStage := func(stage model.Stage, skip bool, fn func() (stageCounts, error)) error {
		if skip {
			summary.Stages = append(summary.Stages, StageResult{Stage: stage, Skipped: true})
			log.Info("pipeline: stage skipped", zap.String("stage", string(stage)))
			return nil
		}

		start := time.Now()
		counts, stageErr := fn()
		completed := time.Now()
		duration := completed.Sub(start).Seconds()

		if stageErr == nil && counts.noop {
			summary.Stages = append(summary.Stages, StageResult{Stage: stage, Skipped: true})
			log.Info("pipeline: stage had no leads to process", zap.String("stage", string(stage)))
			return nil
		}

		run := model.PipelineRun{
			CampaignID:  campaign.ID,
			Stage:       stage,
			StartedAt:   start,
			CompletedAt: completed,
			Duration:    duration,
			Processed:   counts.processed,
			Succeeded:   counts.succeeded,
			Errored:     counts.errored,
		}
		if stageErr != nil {
			run.Status = model.RunStatusFailed
			run.ErrorMessage = stageErr.Error()
		} else {
			run.Status = model.RunStatusCompleted
		}
		if recErr := p.store.RecordPipelineRun(ctx, run); recErr != nil {
			log.Warn("pipeline: failed to record stage run",
				zap.String("stage", string(stage)), zap.Error(recErr))
		}

		summary.Stages = append(summary.Stages, StageResult{
			Stage:     stage,
			Processed: counts.processed,
			Succeeded: counts.succeeded,
			Errored:   counts.errored,
			Duration:  duration,
		})

		if stageErr != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.Float64("duration_seconds", duration),
				zap.Error(stageErr))
			return stageErr
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", string(stage)),
			zap.Int("processed", counts.processed),
			zap.Int("succeeded", counts.succeeded),
			zap.Int("errored", counts.errored),
			zap.Float64("duration_seconds", duration))
		return nil
	}

	fail := func(stageErr error) (*Summary, error) {
		msg := stageErr.Error()
		setStatus(model.CampaignStatusFailed, model.CampaignPatch{ErrorMessage: &msg})
		return nil, stageErr
	}

	if err := trackStage(model.StageScrape, false, func() (stageCounts, error) {
		return p.runScrape(ctx, campaign)
	}); err != nil {
		return fail(err)
	}

	if err := trackStage(model.StageValidation, p.cfg.Pipeline.SkipValidation, func() (stageCounts, error) {
		return p.runValidation(ctx, campaign)
	}); err != nil {
		return fail(err)
	}

	if err := trackStage(model.StageEnrichment, p.cfg.Pipeline.SkipEnrichment, func() (stageCounts, error) {
		return p.runEnrichment(ctx, campaign)
	}); err != nil {
		return fail(err)
	}

	if err := trackStage(model.StageResearch, p.cfg.Pipeline.SkipResearch, func() (stageCounts, error) {
		return p.runResearch(ctx, campaign)
	}); err != nil {
		return fail(err)
	}

	if err := trackStage(model.StagePersonalization, p.cfg.Pipeline.SkipPersonalize, func() (stageCounts, error) {
		return p.runPersonalization(ctx, campaign)
	}); err != nil {
		return fail(err)
	}

	if err := trackStage(model.StageExport, false, func() (stageCounts, error) {
		path, counts, exportErr := p.runExport(ctx, campaign)
		summary.ExportPath = path
		return counts, exportErr
	}); err != nil {
		return fail(err)
	}

	completedAt := time.Now().UTC()
	setStatus(model.CampaignStatusCompleted, model.CampaignPatch{CompletedAt: &completedAt})
	summary.Status = model.CampaignStatusCompleted

	final, err := p.store.GetCampaign(ctx, campaign.ID)
	if err == nil && final != nil {
		summary.TotalLeads = final.TotalLeads
		summary.ValidatedLeads = final.ValidatedLeads
		summary.EnrichedLeads = final.EnrichedLeads
		summary.PersonalizedLeads = final.PersonalizedLeads
	}
	summary.Duration = time.Since(runStart).Seconds()

	log.Info("pipeline: run complete",
		zap.Int("total_leads", summary.TotalLeads),
		zap.Int("validated_leads", summary.ValidatedLeads),
		zap.Int("personalized_leads", summary.PersonalizedLeads),
		zap.Float64("duration_seconds", summary.Duration))
	return summary, nil
}
