package pipeline

import (
	"context"

	"github.com/Marius-prog/Leads-generator/internal/export"
	"github.com/Marius-prog/Leads-generator/internal/model"
)

// runExport writes every lead in the campaign to the configured
// export format and returns the created file's path.
func (p *Pipeline) runExport(ctx context.Context, campaign *model.Campaign) (string, stageCounts, error) {
	format, err := export.ParseFormat(p.cfg.Export.Format)
	if err != nil {
		return "", stageCounts{}, err
	}

	leads, err := p.store.GetLeadsByCampaign(ctx, campaign.ID, "")
	if err != nil {
		return "", stageCounts{}, err
	}

	path, err := p.exporter.Export(*campaign, leads, format)
	if err != nil {
		return "", stageCounts{processed: len(leads)}, err
	}
	return path, stageCounts{processed: len(leads), succeeded: len(leads)}, nil
}
