// Package api exposes campaign management and pipeline runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Marius-prog/Leads-generator/internal/jobs"
	"github.com/Marius-prog/Leads-generator/internal/model"
	"github.com/Marius-prog/Leads-generator/internal/pipeline"
	"github.com/Marius-prog/Leads-generator/internal/store"
)

// Server handles the HTTP API. Pipeline runs started over the API are
// asynchronous; clients poll the returned job.
type Server struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	jobs     *jobs.Store
}

func NewServer(st store.Store, p *pipeline.Pipeline) *Server {
	return &Server{
		store:    st,
		pipeline: p,
		jobs:     jobs.NewStore(),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", s.handleCreateCampaign)
			r.Get("/", s.handleListCampaigns)
			r.Route("/{campaignID}", func(r chi.Router) {
				r.Get("/", s.handleGetCampaign)
				r.Get("/status", s.handleCampaignStatus)
				r.Get("/leads", s.handleCampaignLeads)
				r.Post("/run", s.handleRunCampaign)
			})
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Get("/{jobID}", s.handleGetJob)
			r.Delete("/{jobID}", s.handleDeleteJob)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createCampaignRequest struct {
	Name         string `json:"name"`
	BusinessType string `json:"business_type"`
	Location     string `json:"location"`
	MaxResults   int    `json:"max_results"`
	FromEmail    string `json:"from_email"`
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessType == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "business_type and location are required")
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 20
	}
	if req.Name == "" {
		req.Name = req.BusinessType + " in " + req.Location
	}

	campaign, err := s.store.CreateCampaign(r.Context(), model.Campaign{
		Name:         req.Name,
		BusinessType: req.BusinessType,
		Location:     req.Location,
		MaxResults:   req.MaxResults,
		FromEmail:    req.FromEmail,
	})
	if err != nil {
		zap.L().Error("api: create campaign", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListCampaigns(r.Context(), 100)
	if err != nil {
		zap.L().Error("api: list campaigns", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (s *Server) loadCampaign(w http.ResponseWriter, r *http.Request) *model.Campaign {
	id := chi.URLParam(r, "campaignID")
	campaign, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		zap.L().Error("api: get campaign", zap.String("campaign_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return nil
	}
	if campaign == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return nil
	}
	return campaign
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	if campaign := s.loadCampaign(w, r); campaign != nil {
		writeJSON(w, http.StatusOK, campaign)
	}
}

func (s *Server) handleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	campaign := s.loadCampaign(w, r)
	if campaign == nil {
		return
	}
	status, err := s.pipeline.Status(r.Context(), campaign.ID)
	if err != nil {
		zap.L().Error("api: campaign status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCampaignLeads(w http.ResponseWriter, r *http.Request) {
	campaign := s.loadCampaign(w, r)
	if campaign == nil {
		return
	}
	status := model.LeadStatus(r.URL.Query().Get("status"))
	leads, err := s.store.GetLeadsByCampaign(r.Context(), campaign.ID, status)
	if err != nil {
		zap.L().Error("api: campaign leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load leads")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleRunCampaign(w http.ResponseWriter, r *http.Request) {
	campaign := s.loadCampaign(w, r)
	if campaign == nil {
		return
	}
	if campaign.Status == model.CampaignStatusRunning {
		writeError(w, http.StatusConflict, "campaign is already running")
		return
	}

	job := s.jobs.Create(campaign.ID)

	// The run must outlive the request, so it cannot use the
	// request's context.
	go func() {
		s.jobs.Start(job.ID)
		summary, err := s.pipeline.Run(context.Background(), campaign.ID)
		if err != nil {
			zap.L().Error("api: pipeline run failed",
				zap.String("campaign_id", campaign.ID),
				zap.String("job_id", job.ID),
				zap.Error(err))
			s.jobs.Fail(job.ID, err.Error())
			return
		}
		s.jobs.Complete(job.ID, summary)
	}()

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Get(chi.URLParam(r, "jobID"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job := s.jobs.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if !s.jobs.Delete(id) {
		writeError(w, http.StatusConflict, "job is still running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
