package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Marius-prog/Leads-generator/internal/config"
	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/store"
	"github.com/Marius-prog/Leads-generator/pkg/perplexity"
	"github.com/Marius-prog/Leads-generator/pkg/places"
)

func testConfig(t *testing.T, mockMode bool) *config.Config {
	t.Helper()
	return &config.Config{
		Pipeline: config.PipelineConfig{
			Workers:         2,
			Mock:            mockMode,
			MessageTemplate: "professional",
		},
		Validation: config.ValidationConfig{
			PhoneRegion:   "US",
			RatePerSecond: 100,
		},
		Export: config.ExportConfig{
			Dir:    t.TempDir(),
			Format: "csv",
		},
		Anthropic: config.AnthropicConfig{Model: "claude-haiku-4-5-20251001"},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, store.Store, *mockPlacesClient, *mockPerplexityClient, *mockAnthropicClient) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	placesMock := &mockPlacesClient{}
	pplxMock := &mockPerplexityClient{}
	aiMock := &mockAnthropicClient{}

	p, err := New(cfg, st, placesMock, pplxMock, aiMock)
	require.NoError(t, err)
	return p, st, placesMock, pplxMock, aiMock
}

func createCampaign(t *testing.T, st store.Store, maxResults int) *model.Campaign {
	t.Helper()
	c, err := st.CreateCampaign(context.Background(), model.Campaign{
		Name:         "Seattle restaurants",
		BusinessType: "restaurants",
		Location:     "Seattle, WA",
		MaxResults:   maxResults,
	})
	require.NoError(t, err)
	return c
}

func TestRunMockModeFullPipeline(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, _ := newTestPipeline(t, testConfig(t, true))
	c := createCampaign(t, st, 4)

	summary, err := p.Run(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, model.CampaignStatusCompleted, summary.Status)
	assert.Equal(t, 4, summary.TotalLeads)
	assert.Equal(t, 4, summary.ValidatedLeads)
	assert.Equal(t, 4, summary.EnrichedLeads)
	assert.Equal(t, 4, summary.PersonalizedLeads)
	require.Len(t, summary.Stages, 6)

	// campaign reaches completed with a completion timestamp
	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.ErrorMessage)

	// audit rows appended in stage-execution order
	runs, err := st.GetPipelineRuns(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, runs, 6)
	wantOrder := []model.Stage{
		model.StageScrape, model.StageValidation, model.StageEnrichment,
		model.StageResearch, model.StagePersonalization, model.StageExport,
	}
	for i, stage := range wantOrder {
		assert.Equal(t, stage, runs[i].Stage)
		assert.Equal(t, model.RunStatusCompleted, runs[i].Status)
	}

	// every lead carries all stage payloads
	leads, err := st.GetLeadsByCampaign(ctx, c.ID, "")
	require.NoError(t, err)
	require.Len(t, leads, 4)
	for _, l := range leads {
		assert.Equal(t, model.LeadStatusPersonalized, l.Status)
		assert.True(t, l.EmailValid)
		require.NotNil(t, l.LinkedInProfile)
		assert.True(t, l.LinkedInProfile.Inferred)
		assert.InDelta(t, 0.7, l.LinkedInProfile.Confidence, 1e-9)
		require.NotNil(t, l.ResearchData)
		assert.Equal(t, "mock", l.ResearchData.Source)
		assert.InDelta(t, 0.8, l.ResearchData.Confidence, 1e-9)
		require.NotNil(t, l.Personalized)
		assert.Equal(t, "professional", l.Personalized.TemplateUsed)
		assert.Contains(t, l.Personalized.Subject, l.Name)
	}

	// export file written
	require.NotEmpty(t, summary.ExportPath)
	_, err = os.Stat(summary.ExportPath)
	assert.NoError(t, err)
}

func TestRunCampaignNotFound(t *testing.T) {
	p, _, _, _, _ := newTestPipeline(t, testConfig(t, true))
	_, err := p.Run(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGenerateCreatesAndRunsCampaign(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, _ := newTestPipeline(t, testConfig(t, true))

	summary, err := p.Generate(ctx, Request{
		BusinessType: "coffee shops",
		Location:     "Seattle, WA",
		MaxResults:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalLeads)

	got, err := st.GetCampaign(ctx, summary.CampaignID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "coffee shops in Seattle, WA", got.Name)
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
}

func TestGenerateRejectsBadInputBeforeWriting(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, _ := newTestPipeline(t, testConfig(t, true))

	for _, req := range []Request{
		{Location: "Seattle, WA", MaxResults: 5},
		{BusinessType: "coffee shops", MaxResults: 5},
		{BusinessType: "coffee shops", Location: "Seattle, WA", MaxResults: 0},
	} {
		_, err := p.Generate(ctx, req)
		require.Error(t, err)
	}

	campaigns, err := st.ListCampaigns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}

func TestRunRejectsRunningCampaign(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, _ := newTestPipeline(t, testConfig(t, true))
	c := createCampaign(t, st, 2)

	running := model.CampaignStatusRunning
	require.NoError(t, st.UpdateCampaign(ctx, c.ID, model.CampaignPatch{Status: &running}))

	_, err := p.Run(ctx, c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestRunRejectsCompletedCampaign(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, _ := newTestPipeline(t, testConfig(t, true))
	c := createCampaign(t, st, 2)

	_, err := p.Run(ctx, c.ID)
	require.NoError(t, err)

	_, err = p.Run(ctx, c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestRunScrapeFailureMarksCampaignFailed(t *testing.T) {
	ctx := context.Background()
	p, st, placesMock, _, _ := newTestPipeline(t, testConfig(t, false))
	c := createCampaign(t, st, 5)

	placesMock.On("TextSearch", mock.Anything, "restaurants in Seattle, WA", 5).
		Return(nil, errors.New("invalid api key"))

	_, err := p.Run(ctx, c.ID)
	require.Error(t, err)

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "invalid api key")
	assert.Nil(t, got.CompletedAt)

	runs, err := st.GetPipelineRuns(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.StageScrape, runs[0].Stage)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	placesMock.AssertExpectations(t)
}

func TestRunEmptySearchMarksCampaignFailed(t *testing.T) {
	ctx := context.Background()
	p, st, placesMock, _, _ := newTestPipeline(t, testConfig(t, false))
	c := createCampaign(t, st, 5)

	placesMock.On("TextSearch", mock.Anything, "restaurants in Seattle, WA", 5).
		Return([]places.Place{}, nil)

	_, err := p.Run(ctx, c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no businesses found")

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "no businesses found")
}

func TestRunFailedCampaignCanRetry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, true)
	p, st, _, _, _ := newTestPipeline(t, cfg)
	c := createCampaign(t, st, 2)

	failed := model.CampaignStatusFailed
	msg := "places: search failed"
	require.NoError(t, st.UpdateCampaign(ctx, c.ID, model.CampaignPatch{Status: &failed, ErrorMessage: &msg}))

	summary, err := p.Run(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalLeads)

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
}

func TestScrapeLiveDedupesAndCleans(t *testing.T) {
	ctx := context.Background()
	p, st, placesMock, _, _ := newTestPipeline(t, testConfig(t, false))
	c := createCampaign(t, st, 10)

	placesMock.On("TextSearch", mock.Anything, "restaurants in Seattle, WA", 10).
		Return([]places.Place{
			{
				ID:              "p1",
				DisplayName:     places.DisplayName{Text: "  Pike Place   Chowder "},
				Address:         "1530 Post Alley, Seattle, WA 98101",
				NationalPhone:   "(206) 267-2537",
				WebsiteURI:      "pikeplacechowder.com",
				Rating:          4.8,
				UserRatingCount: 9213,
			},
			{ID: "p1", DisplayName: places.DisplayName{Text: "Pike Place Chowder"}}, // duplicate
			{ID: "p3", DisplayName: places.DisplayName{Text: ""}},                   // unusable
		}, nil)

	counts, err := p.runScrape(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.processed)
	assert.Equal(t, 1, counts.succeeded)

	leads, err := st.GetLeadsByCampaign(ctx, c.ID, "")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	l := leads[0]
	assert.Equal(t, "Pike Place Chowder", l.Name)
	assert.Equal(t, "https://pikeplacechowder.com", l.Website)
	assert.Equal(t, "+1 206-267-2537", l.Phone)
	assert.Equal(t, "Seattle", l.City)
	assert.Equal(t, "WA", l.State)
	assert.Equal(t, "98101", l.PostalCode)

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalLeads)
}

func TestStagesNoopWithoutEligibleLeads(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, _ := newTestPipeline(t, testConfig(t, true))
	c := createCampaign(t, st, 2)

	for name, fn := range map[string]func(context.Context, *model.Campaign) (stageCounts, error){
		"validation":      p.runValidation,
		"enrichment":      p.runEnrichment,
		"research":        p.runResearch,
		"personalization": p.runPersonalization,
	} {
		counts, err := fn(ctx, c)
		require.NoError(t, err, name)
		assert.True(t, counts.noop, name)
	}
}

func seedLeadsAtStatus(t *testing.T, st store.Store, c *model.Campaign, status model.LeadStatus, names ...string) []model.Lead {
	t.Helper()
	ctx := context.Background()
	leads := make([]model.Lead, 0, len(names))
	for _, name := range names {
		leads = append(leads, model.Lead{CampaignID: c.ID, Name: name, Status: status})
	}
	require.NoError(t, st.InsertLeads(ctx, leads))
	got, err := st.GetLeadsByCampaign(ctx, c.ID, status)
	require.NoError(t, err)
	return got
}

func TestResearchIsolatesLeadFailures(t *testing.T) {
	ctx := context.Background()
	p, st, _, pplxMock, _ := newTestPipeline(t, testConfig(t, false))
	c := createCampaign(t, st, 2)
	seedLeadsAtStatus(t, st, c, model.LeadStatusEnriched, "Good Cafe", "Bad Cafe")

	matchLead := func(name string) any {
		return mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
			return strings.Contains(req.Messages[len(req.Messages)-1].Content, name)
		})
	}
	pplxMock.On("ChatCompletion", mock.Anything, matchLead("Good Cafe")).
		Return(&perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{
				Role: "assistant", Content: "A beloved neighborhood cafe.",
			}}},
		}, nil)
	pplxMock.On("ChatCompletion", mock.Anything, matchLead("Bad Cafe")).
		Return(nil, errors.New("bad request"))

	counts, err := p.runResearch(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.processed)
	assert.Equal(t, 1, counts.succeeded)
	assert.Equal(t, 1, counts.errored)

	researched, err := st.GetLeadsByCampaign(ctx, c.ID, model.LeadStatusResearched)
	require.NoError(t, err)
	require.Len(t, researched, 1)
	assert.Equal(t, "Good Cafe", researched[0].Name)
	require.NotNil(t, researched[0].ResearchData)
	assert.Equal(t, "perplexity", researched[0].ResearchData.Source)

	// the failed lead keeps its prior status
	stuck, err := st.GetLeadsByCampaign(ctx, c.ID, model.LeadStatusEnriched)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "Bad Cafe", stuck[0].Name)
}

func TestPersonalizationFallsBackToTemplate(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, aiMock := newTestPipeline(t, testConfig(t, false))
	c := createCampaign(t, st, 1)
	seedLeadsAtStatus(t, st, c, model.LeadStatusResearched, "Canlis")

	aiMock.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("overloaded"))

	counts, err := p.runPersonalization(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.succeeded)

	leads, err := st.GetLeadsByCampaign(ctx, c.ID, model.LeadStatusPersonalized)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	require.NotNil(t, leads[0].Personalized)
	assert.Equal(t, "professional", leads[0].Personalized.TemplateUsed)
	assert.Contains(t, leads[0].Personalized.Subject, "Canlis")
}

func TestStatusProgress(t *testing.T) {
	ctx := context.Background()
	p, st, _, _, _ := newTestPipeline(t, testConfig(t, true))
	c := createCampaign(t, st, 2)

	status, err := p.Status(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, status.Progress)

	_, err = p.Run(ctx, c.ID)
	require.NoError(t, err)

	status, err = p.Status(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), status.Progress)
	assert.Equal(t, 2, status.Stats.TotalLeads)
	assert.Len(t, status.Stats.Runs, 6)
}

func TestStatusUnknownCampaign(t *testing.T) {
	p, _, _, _, _ := newTestPipeline(t, testConfig(t, true))
	status, err := p.Status(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestSplitSubject(t *testing.T) {
	subject, body := splitSubject("Subject: Quick question\n\nHi there,\nbody text")
	assert.Equal(t, "Quick question", subject)
	assert.Equal(t, "Hi there,\nbody text", body)

	subject, body = splitSubject("No subject line here")
	assert.Empty(t, subject)
	assert.Equal(t, "No subject line here", body)
}
