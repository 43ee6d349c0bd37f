package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/resilience"
	"github.com/Marius-prog/Leads-generator/pkg/anthropic"
)

// runPersonalization writes an outreach message for every researched
// lead, either from a template (mock mode) or via the model.
func (p *Pipeline) runPersonalization(ctx context.Context, campaign *model.Campaign) (stageCounts, error) {
	leads, err := p.store.GetLeadsByCampaign(ctx, campaign.ID, model.LeadStatusResearched)
	if err != nil {
		return stageCounts{}, err
	}
	if len(leads) == 0 {
		return stageCounts{noop: true}, nil
	}

	personalized := model.LeadStatusPersonalized
	patches := make([]model.LeadPatch, len(leads))
	counts := stageCounts{processed: len(leads)}

	if p.cfg.Pipeline.Mock {
		for i, lead := range leads {
			patches[i] = model.LeadPatch{
				LeadID:       lead.ID,
				Status:       &personalized,
				Personalized: p.templateMessage(lead, campaign),
			}
			counts.succeeded++
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Pipeline.Workers)

		for i, lead := range leads {
			g.Go(func() error {
				msg, genErr := p.generateMessage(gCtx, lead, campaign)
				if genErr != nil {
					zap.L().Warn("personalization: generation failed, falling back to template",
						zap.Int64("lead_id", lead.ID),
						zap.Error(genErr))
					msg = p.templateMessage(lead, campaign)
				}
				patches[i] = model.LeadPatch{
					LeadID:       lead.ID,
					Status:       &personalized,
					Personalized: msg,
				}
				return gCtx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return counts, eris.Wrap(err, "personalization: batch")
		}
		counts.succeeded = len(leads)
	}

	if err := p.store.UpdateLeadsBatch(ctx, campaign.ID, patches); err != nil {
		return counts, eris.Wrap(err, "personalization: persist messages")
	}
	if err := p.store.UpdateCampaign(ctx, campaign.ID, model.CampaignPatch{PersonalizedLeads: &counts.succeeded}); err != nil {
		return counts, err
	}
	return counts, nil
}

func (p *Pipeline) templateMessage(lead model.Lead, campaign *model.Campaign) *model.PersonalizedMessage {
	name := p.cfg.Pipeline.MessageTemplate
	tmpl := p.templates.Get(name)

	overview := ""
	if lead.ResearchData != nil {
		overview = lead.ResearchData.CompanyOverview
	}
	values := map[string]string{
		"business_name": lead.Name,
		"business_type": campaign.BusinessType,
		"location":      campaign.Location,
		"overview":      overview,
		"from_email":    campaign.FromEmail,
	}
	subject, body := tmpl.Render(values)

	return &model.PersonalizedMessage{
		Subject:      subject,
		Message:      body,
		TemplateUsed: name,
		Elements: map[string]string{
			"business_name": lead.Name,
			"location":      campaign.Location,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (p *Pipeline) generateMessage(ctx context.Context, lead model.Lead, campaign *model.Campaign) (*model.PersonalizedMessage, error) {
	overview := ""
	if lead.ResearchData != nil {
		overview = lead.ResearchData.CompanyOverview
	}
	prompt := fmt.Sprintf(
		"Write a short cold outreach email to %s, a %s in %s.\n\n"+
			"Background: %s\n\n"+
			"Start with a subject line on its own first line prefixed with \"Subject: \", "+
			"then the email body. Keep it under 150 words, specific to this business, no placeholders.",
		lead.Name, campaign.BusinessType, campaign.Location, overview)

	policy := resilience.Policy{}
	resp, err := resilience.DoVal(ctx, policy, "anthropic.create_message", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.Model,
			MaxTokens: 1024,
			System:    "You write concise, personable B2B outreach emails.",
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(p.cfg.Anthropic.Model, "personalization")

	subject, body := splitSubject(resp.Text())
	if body == "" {
		return nil, eris.Errorf("personalization: empty message for lead %d", lead.ID)
	}
	return &model.PersonalizedMessage{
		Subject:      subject,
		Message:      body,
		TemplateUsed: "generated",
		Elements: map[string]string{
			"business_name": lead.Name,
			"location":      campaign.Location,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// splitSubject pulls a leading "Subject: ..." line out of generated
// text, returning the remainder as the body.
func splitSubject(text string) (subject, body string) {
	text = strings.TrimSpace(text)
	line, rest, found := strings.Cut(text, "\n")
	if found && strings.HasPrefix(strings.ToLower(line), "subject:") {
		return strings.TrimSpace(line[len("subject:"):]), strings.TrimSpace(rest)
	}
	return "", text
}
