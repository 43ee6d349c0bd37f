package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/Marius-prog/Leads-generator/internal/model"
)

// inferredProfileConfidence reflects that profiles are derived from
// the lead record, not fetched from LinkedIn.
const inferredProfileConfidence = 0.7

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// runEnrichment builds an inferred LinkedIn company profile for every
// validated lead.
func (p *Pipeline) runEnrichment(ctx context.Context, campaign *model.Campaign) (stageCounts, error) {
	leads, err := p.store.GetLeadsByCampaign(ctx, campaign.ID, model.LeadStatusValidated)
	if err != nil {
		return stageCounts{}, err
	}
	if len(leads) == 0 {
		return stageCounts{noop: true}, nil
	}

	enriched := model.LeadStatusEnriched
	patches := make([]model.LeadPatch, 0, len(leads))
	for _, lead := range leads {
		profile := inferProfile(lead, campaign)
		patches = append(patches, model.LeadPatch{
			LeadID:          lead.ID,
			Status:          &enriched,
			LinkedInProfile: profile,
		})
	}

	if err := p.store.UpdateLeadsBatch(ctx, campaign.ID, patches); err != nil {
		return stageCounts{processed: len(leads)}, eris.Wrap(err, "enrichment: persist profiles")
	}
	count := len(patches)
	if err := p.store.UpdateCampaign(ctx, campaign.ID, model.CampaignPatch{EnrichedLeads: &count}); err != nil {
		return stageCounts{processed: len(leads), succeeded: count}, err
	}
	return stageCounts{processed: len(leads), succeeded: count}, nil
}

func inferProfile(lead model.Lead, campaign *model.Campaign) *model.LinkedInProfile {
	location := strings.TrimSpace(strings.Join(nonEmpty(lead.City, lead.State), ", "))
	if location == "" {
		location = campaign.Location
	}
	industry := lead.Category
	if industry == "" {
		industry = campaign.BusinessType
	}

	profile := &model.LinkedInProfile{
		Inferred:    true,
		CompanyName: lead.Name,
		Industry:    industry,
		Location:    location,
		Confidence:  inferredProfileConfidence,
	}
	if slug := companySlug(lead.Name); slug != "" {
		profile.ProfileURL = "https://www.linkedin.com/company/" + slug
	}
	return profile
}

func companySlug(name string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
