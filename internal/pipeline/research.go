package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/resilience"
	"github.com/Marius-prog/Leads-generator/pkg/perplexity"
)

const defaultResearchConfidence = 0.8

// runResearch gathers company background for every enriched lead.
func (p *Pipeline) runResearch(ctx context.Context, campaign *model.Campaign) (stageCounts, error) {
	leads, err := p.store.GetLeadsByCampaign(ctx, campaign.ID, model.LeadStatusEnriched)
	if err != nil {
		return stageCounts{}, err
	}
	if len(leads) == 0 {
		return stageCounts{noop: true}, nil
	}

	researched := model.LeadStatusResearched
	patches := make([]model.LeadPatch, len(leads))
	counts := stageCounts{processed: len(leads)}

	if p.cfg.Pipeline.Mock {
		for i, lead := range leads {
			patches[i] = model.LeadPatch{
				LeadID:       lead.ID,
				Status:       &researched,
				ResearchData: mockResearch(lead, campaign),
			}
			counts.succeeded++
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Pipeline.Workers)

		for i, lead := range leads {
			g.Go(func() error {
				data, researchErr := p.researchLead(gCtx, lead, campaign)
				if researchErr != nil {
					// one flaky lookup should not sink the stage
					zap.L().Warn("research: lead lookup failed",
						zap.Int64("lead_id", lead.ID),
						zap.String("name", lead.Name),
						zap.Error(researchErr))
					patches[i] = model.LeadPatch{LeadID: lead.ID}
					return nil
				}
				patches[i] = model.LeadPatch{
					LeadID:       lead.ID,
					Status:       &researched,
					ResearchData: data,
				}
				return gCtx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return counts, eris.Wrap(err, "research: batch")
		}
		for _, patch := range patches {
			if patch.ResearchData != nil {
				counts.succeeded++
			} else {
				counts.errored++
			}
		}
	}

	applied := patches[:0]
	for _, patch := range patches {
		if patch.ResearchData != nil {
			applied = append(applied, patch)
		}
	}
	if err := p.store.UpdateLeadsBatch(ctx, campaign.ID, applied); err != nil {
		return counts, eris.Wrap(err, "research: persist results")
	}
	return counts, nil
}

func (p *Pipeline) researchLead(ctx context.Context, lead model.Lead, campaign *model.Campaign) (*model.ResearchData, error) {
	prompt := fmt.Sprintf(
		"Give a brief business overview of %q, a %s located in %s. "+
			"Cover what they do, notable strengths, common challenges for this kind of business, and any recent news.",
		lead.Name, campaign.BusinessType, campaign.Location)

	policy := resilience.Policy{Classify: perplexityRetryable}
	resp, err := resilience.DoVal(ctx, policy, "perplexity.chat_completion", func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return p.perplexity.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{
				{Role: "system", Content: "You are a concise business research assistant."},
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, eris.Errorf("research: empty completion for lead %d", lead.ID)
	}
	return &model.ResearchData{
		CompanyOverview:  text,
		IndustryInsights: campaign.BusinessType,
		Source:           "perplexity",
		ResearchedAt:     time.Now().UTC(),
		Confidence:       defaultResearchConfidence,
	}, nil
}

func perplexityRetryable(err error) bool {
	var apiErr *perplexity.APIError
	if errors.As(err, &apiErr) {
		return resilience.RetryableStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func mockResearch(lead model.Lead, campaign *model.Campaign) *model.ResearchData {
	return &model.ResearchData{
		CompanyOverview: fmt.Sprintf("%s is a %s serving the %s area.",
			lead.Name, campaign.BusinessType, campaign.Location),
		IndustryInsights: fmt.Sprintf("The %s market is competitive on reviews and local visibility.",
			campaign.BusinessType),
		KeyChallenges: []string{
			"standing out in local search results",
			"converting one-time customers into repeat business",
		},
		RecentNews:   []string{},
		Source:       "mock",
		ResearchedAt: time.Now().UTC(),
		Confidence:   defaultResearchConfidence,
	}
}
