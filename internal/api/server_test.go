package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marius-prog/Leads-generator/internal/config"
	"github.com/Marius-prog/Leads-generator/internal/jobs"
	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/pipeline"
	"github.com/Marius-prog/Leads-generator/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Pipeline:   config.PipelineConfig{Workers: 2, Mock: true, MessageTemplate: "professional"},
		Validation: config.ValidationConfig{PhoneRegion: "US", RatePerSecond: 100},
		Export:     config.ExportConfig{Dir: t.TempDir(), Format: "json"},
	}
	p, err := pipeline.New(cfg, st, nil, nil, nil)
	require.NoError(t, err)
	return NewServer(st, p), st
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateCampaign(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/campaigns", map[string]any{
		"business_type": "dentists",
		"location":      "Austin, TX",
		"max_results":   15,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var c model.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "dentists in Austin, TX", c.Name)
	assert.Equal(t, model.CampaignStatusPending, c.Status)
	assert.Equal(t, 15, c.MaxResults)
}

func TestCreateCampaignValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/campaigns", map[string]any{"location": "Austin, TX"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestGetCampaignNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Router(), http.MethodGet, "/api/campaigns/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCampaignsEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Router(), http.MethodGet, "/api/campaigns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRunCampaignAsync(t *testing.T) {
	s, st := newTestServer(t)
	router := s.Router()

	c, err := st.CreateCampaign(context.Background(), model.Campaign{
		Name: "test", BusinessType: "restaurants", Location: "Seattle, WA", MaxResults: 2,
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/campaigns/"+c.ID+"/run", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotEmpty(t, job.ID)
	assert.Equal(t, c.ID, job.CampaignID)

	// poll until the mock-mode run finishes
	deadline := time.After(10 * time.Second)
	for {
		rec = doJSON(t, router, http.MethodGet, "/api/jobs/"+job.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		if job.Status == jobs.StatusCompleted || job.Status == jobs.StatusFailed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job did not finish, status %s", job.Status)
		case <-time.After(50 * time.Millisecond):
		}
	}
	require.Equal(t, jobs.StatusCompleted, job.Status)

	// campaign reached completed and leads are queryable
	rec = doJSON(t, router, http.MethodGet, "/api/campaigns/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
	assert.Equal(t, 2, got.TotalLeads)

	rec = doJSON(t, router, http.MethodGet, "/api/campaigns/"+c.ID+"/leads?status=personalized", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var leads []model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leads))
	assert.Len(t, leads, 2)

	rec = doJSON(t, router, http.MethodGet, "/api/campaigns/"+c.ID+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status pipeline.CampaignStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, float64(100), status.Progress)
}

func TestRunCampaignConflictWhileRunning(t *testing.T) {
	s, st := newTestServer(t)
	router := s.Router()

	c, err := st.CreateCampaign(context.Background(), model.Campaign{
		Name: "test", BusinessType: "restaurants", Location: "Seattle, WA", MaxResults: 1,
	})
	require.NoError(t, err)

	running := model.CampaignStatusRunning
	require.NoError(t, st.UpdateCampaign(context.Background(), c.ID, model.CampaignPatch{Status: &running}))

	rec := doJSON(t, router, http.MethodPost, "/api/campaigns/"+c.ID+"/run", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Router(), http.MethodGet, "/api/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	job := s.jobs.Create("c-1")
	s.jobs.Start(job.ID)

	rec := doJSON(t, router, http.MethodDelete, "/api/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "running jobs cannot be deleted")

	s.jobs.Complete(job.ID, nil)
	rec = doJSON(t, router, http.MethodDelete, "/api/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
