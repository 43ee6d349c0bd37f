package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/resilience"
	"github.com/Marius-prog/Leads-generator/pkg/places"
)

// runScrape discovers businesses for the campaign query and persists
// them as new leads.
func (p *Pipeline) runScrape(ctx context.Context, campaign *model.Campaign) (stageCounts, error) {
	var businesses []model.Business
	if p.cfg.Pipeline.Mock {
		businesses = mockBusinesses(campaign)
	} else {
		found, err := p.searchPlaces(ctx, campaign)
		if err != nil {
			return stageCounts{}, err
		}
		businesses = found
	}

	leads := make([]model.Lead, 0, len(businesses))
	seen := make(map[string]bool, len(businesses))
	for i := range businesses {
		b := &businesses[i]
		b.Clean()
		if b.Name == "" {
			continue
		}
		// dedupe on place ID within the batch
		if b.PlaceID != "" && seen[b.PlaceID] {
			continue
		}
		seen[b.PlaceID] = true
		leads = append(leads, b.Lead(campaign.ID))
	}

	if len(leads) == 0 {
		return stageCounts{processed: len(businesses)}, eris.Errorf(
			"scrape: no businesses found for %q in %q", campaign.BusinessType, campaign.Location)
	}

	if err := p.store.InsertLeads(ctx, leads); err != nil {
		return stageCounts{processed: len(businesses)}, err
	}

	total := len(leads)
	if err := p.store.UpdateCampaign(ctx, campaign.ID, model.CampaignPatch{TotalLeads: &total}); err != nil {
		return stageCounts{processed: len(businesses), succeeded: total}, err
	}

	zap.L().Info("scrape: leads persisted",
		zap.String("campaign_id", campaign.ID),
		zap.Int("found", len(businesses)),
		zap.Int("kept", total))
	return stageCounts{processed: len(businesses), succeeded: total, errored: len(businesses) - total}, nil
}

func (p *Pipeline) searchPlaces(ctx context.Context, campaign *model.Campaign) ([]model.Business, error) {
	query := fmt.Sprintf("%s in %s", campaign.BusinessType, campaign.Location)

	policy := resilience.Policy{Classify: placesRetryable}
	results, err := resilience.DoVal(ctx, policy, "places.text_search", func(ctx context.Context) ([]places.Place, error) {
		return p.places.TextSearch(ctx, query, campaign.MaxResults)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: search %q", query)
	}

	businesses := make([]model.Business, 0, len(results))
	for _, place := range results {
		businesses = append(businesses, placeToBusiness(place))
	}
	return businesses, nil
}

func placesRetryable(err error) bool {
	var apiErr *places.APIError
	if errors.As(err, &apiErr) {
		return resilience.RetryableStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func placeToBusiness(pl places.Place) model.Business {
	phone := pl.InternationalP
	if phone == "" {
		phone = pl.NationalPhone
	}
	return model.Business{
		PlaceID:   pl.ID,
		Name:      pl.DisplayName.Text,
		Address:   pl.Address,
		Phone:     phone,
		Website:   pl.WebsiteURI,
		Category:  pl.PrimaryType.Text,
		Rating:    pl.Rating,
		Reviews:   pl.UserRatingCount,
		Latitude:  pl.Location.Latitude,
		Longitude: pl.Location.Longitude,
	}
}

// mockBusinesses generates deterministic sample data so the full
// pipeline can run without API keys.
func mockBusinesses(campaign *model.Campaign) []model.Business {
	n := campaign.MaxResults
	if n <= 0 {
		n = 10
	}
	out := make([]model.Business, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Business{
			PlaceID:  fmt.Sprintf("mock-%s-%d", campaign.ID, i),
			Name:     fmt.Sprintf("%s Business %d", campaign.BusinessType, i),
			Address:  fmt.Sprintf("%d Main St, %s", 100+i, campaign.Location),
			Phone:    fmt.Sprintf("(206) 555-%04d", i),
			Email:    fmt.Sprintf("contact%d@example.com", i),
			Website:  fmt.Sprintf("https://business%d.example.com", i),
			Category: campaign.BusinessType,
			Rating:   3.5 + float64(i%3)*0.5,
			Reviews:  25 * i,
		})
	}
	return out
}
