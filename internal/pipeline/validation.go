package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/validate"
)

// runValidation checks contact data for all new leads. Every processed
// lead advances to validated; the validity flags record what passed.
// The campaign's validated_leads counter counts working emails only.
func (p *Pipeline) runValidation(ctx context.Context, campaign *model.Campaign) (stageCounts, error) {
	leads, err := p.store.GetLeadsByCampaign(ctx, campaign.ID, model.LeadStatusNew)
	if err != nil {
		return stageCounts{}, err
	}
	if len(leads) == 0 {
		return stageCounts{noop: true}, nil
	}

	var results []validate.Result
	if p.cfg.Pipeline.Mock {
		results = mockValidation(leads)
	} else {
		results, err = p.validator.ValidateBatch(ctx, leads)
		if err != nil {
			return stageCounts{processed: len(leads)}, err
		}
	}

	counts := stageCounts{processed: len(results)}
	patches := make([]model.LeadPatch, 0, len(results))
	validated := model.LeadStatusValidated
	validEmails := 0
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			counts.errored++
		} else {
			counts.succeeded++
		}
		if res.Email.Valid {
			validEmails++
		}
		patches = append(patches, model.LeadPatch{
			LeadID:       res.Lead.ID,
			Status:       &validated,
			EmailValid:   &res.Email.Valid,
			PhoneValid:   &res.Phone.Valid,
			CompanyValid: &res.Company.Valid,
		})
	}

	if err := p.store.UpdateLeadsBatch(ctx, campaign.ID, patches); err != nil {
		return counts, eris.Wrap(err, "validation: persist results")
	}
	if err := p.store.UpdateCampaign(ctx, campaign.ID, model.CampaignPatch{ValidatedLeads: &validEmails}); err != nil {
		return counts, err
	}

	summary := validate.Summarize(results)
	zap.L().Info("validation: batch complete",
		zap.String("campaign_id", campaign.ID),
		zap.Int("valid_emails", summary.ValidEmails),
		zap.Int("valid_phones", summary.ValidPhones),
		zap.Int("valid_companies", summary.ValidCompanies),
		zap.Float64("quality_score", summary.QualityScore))
	return counts, nil
}

// mockValidation marks every lead's contact data valid without any
// network traffic.
func mockValidation(leads []model.Lead) []validate.Result {
	results := make([]validate.Result, len(leads))
	for i, lead := range leads {
		results[i] = validate.Result{
			Lead:    lead,
			Email:   validate.EmailResult{Address: lead.Email, FormatOK: true, DomainOK: true, Valid: lead.Email != ""},
			Phone:   validate.PhoneResult{Input: lead.Phone, Valid: lead.Phone != ""},
			Company: validate.CompanyResult{Valid: true, Source: "name"},
		}
	}
	return results
}
