package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Marius-prog/Leads-generator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	business_type      TEXT NOT NULL,
	location           TEXT NOT NULL,
	max_results        INTEGER NOT NULL,
	from_email         TEXT,
	status             TEXT NOT NULL DEFAULT 'pending',
	total_leads        INTEGER NOT NULL DEFAULT 0,
	validated_leads    INTEGER NOT NULL DEFAULT 0,
	enriched_leads     INTEGER NOT NULL DEFAULT 0,
	personalized_leads INTEGER NOT NULL DEFAULT 0,
	error_message      TEXT,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	completed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS leads (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id          TEXT NOT NULL REFERENCES campaigns(id),
	place_id             TEXT,
	name                 TEXT NOT NULL,
	address              TEXT,
	city                 TEXT,
	state                TEXT,
	postal_code          TEXT,
	country              TEXT,
	phone                TEXT,
	email                TEXT,
	website              TEXT,
	category             TEXT,
	rating               REAL,
	reviews_count        INTEGER,
	latitude             REAL,
	longitude            REAL,
	status               TEXT NOT NULL DEFAULT 'new',
	email_valid          INTEGER NOT NULL DEFAULT 0,
	phone_valid          INTEGER NOT NULL DEFAULT 0,
	company_valid        INTEGER NOT NULL DEFAULT 0,
	linkedin_profile     TEXT,
	research_data        TEXT,
	personalized_message TEXT,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id      TEXT NOT NULL REFERENCES campaigns(id),
	stage            TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       DATETIME NOT NULL,
	completed_at     DATETIME NOT NULL,
	duration_seconds REAL NOT NULL DEFAULT 0,
	processed_count  INTEGER NOT NULL DEFAULT 0,
	success_count    INTEGER NOT NULL DEFAULT 0,
	error_count      INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_leads_campaign ON leads(campaign_id);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(campaign_id, status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_campaign ON pipeline_runs(campaign_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, business_type, location, max_results, from_email, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.BusinessType, c.Location, c.MaxResults,
		nullString(c.FromEmail), string(c.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert campaign")
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateCampaign(ctx context.Context, campaignID string, patch model.CampaignPatch) error {
	sets, args := campaignPatchClauses(patch, sqlitePlaceholders)
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), campaignID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE campaigns SET %s WHERE id = ?`, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update campaign %s", campaignID)
	}
	return checkRowsAffected(res, "campaign", campaignID)
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, campaignID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", campaignID)
	}
	return c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, limit int) ([]model.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, eris.Wrap(rows.Err(), "sqlite: list campaigns iterate")
}

func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert leads")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (campaign_id, place_id, name, address, city, state, postal_code, country,
			phone, email, website, category, rating, reviews_count, latitude, longitude, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert lead")
	}
	defer stmt.Close()

	for _, l := range leads {
		status := l.Status
		if status == "" {
			status = model.LeadStatusNew
		}
		if _, err := stmt.ExecContext(ctx,
			l.CampaignID, nullString(l.PlaceID), l.Name, nullString(l.Address), nullString(l.City),
			nullString(l.State), nullString(l.PostalCode), nullString(l.Country), nullString(l.Phone),
			nullString(l.Email), nullString(l.Website), nullString(l.Category),
			l.Rating, l.Reviews, l.Latitude, l.Longitude, string(status), now, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert lead %q", l.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert leads")
}

func (s *SQLiteStore) GetLeadsByCampaign(ctx context.Context, campaignID string, status model.LeadStatus) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE campaign_id = ?`
	args := []any{campaignID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get leads for campaign %s", campaignID)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: get leads iterate")
}

func (s *SQLiteStore) UpdateLeadsBatch(ctx context.Context, campaignID string, patches []model.LeadPatch) error {
	if len(patches) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin update leads")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, p := range patches {
		sets, args, err := leadPatchClauses(p, sqlitePlaceholders)
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			continue
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, now, p.LeadID, campaignID)

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE leads SET %s WHERE id = ? AND campaign_id = ?`, strings.Join(sets, ", ")),
			args...,
		); err != nil {
			return eris.Wrapf(err, "sqlite: update lead %d", p.LeadID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit update leads")
}

func (s *SQLiteStore) RecordPipelineRun(ctx context.Context, run model.PipelineRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (campaign_id, stage, status, started_at, completed_at, duration_seconds,
			processed_count, success_count, error_count, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CampaignID, string(run.Stage), string(run.Status), run.StartedAt.UTC(), run.CompletedAt.UTC(),
		run.Duration, run.Processed, run.Succeeded, run.Errored, nullString(run.ErrorMessage),
	)
	return eris.Wrapf(err, "sqlite: record pipeline run %s/%s", run.CampaignID, run.Stage)
}

func (s *SQLiteStore) GetPipelineRuns(ctx context.Context, campaignID string) ([]model.PipelineRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, stage, status, started_at, completed_at, duration_seconds,
			processed_count, success_count, error_count, COALESCE(error_message, '')
		 FROM pipeline_runs WHERE campaign_id = ? ORDER BY id`, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pipeline runs for %s", campaignID)
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.Stage, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.Duration, &r.Processed, &r.Succeeded, &r.Errored, &r.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pipeline run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: get pipeline runs iterate")
}

func (s *SQLiteStore) GetCampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error) {
	stats := &CampaignStats{ByStatus: make(map[model.LeadStatus]int)}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(email_valid), 0),
			COALESCE(SUM(phone_valid), 0),
			COALESCE(SUM(company_valid), 0),
			COALESCE(SUM(CASE WHEN linkedin_profile IS NOT NULL THEN 1 ELSE 0 END), 0)
		 FROM leads WHERE campaign_id = ?`, campaignID)
	if err := row.Scan(&stats.TotalLeads, &stats.ValidEmails, &stats.ValidPhones,
		&stats.ValidCompanies, &stats.EnrichedLeads); err != nil {
		return nil, eris.Wrapf(err, "sqlite: campaign stats for %s", campaignID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM leads WHERE campaign_id = ? GROUP BY status`, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: campaign stats by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		stats.ByStatus[model.LeadStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: campaign stats iterate")
	}

	runs, err := s.GetPipelineRuns(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats.Runs = runs
	return stats, nil
}

// --- scan and patch helpers shared with the Postgres store ---

const campaignColumns = `id, name, business_type, location, max_results, COALESCE(from_email, ''),
	status, total_leads, validated_leads, enriched_leads, personalized_leads,
	COALESCE(error_message, ''), created_at, updated_at, completed_at`

const leadColumns = `id, campaign_id, COALESCE(place_id, ''), name, COALESCE(address, ''), COALESCE(city, ''),
	COALESCE(state, ''), COALESCE(postal_code, ''), COALESCE(country, ''), COALESCE(phone, ''),
	COALESCE(email, ''), COALESCE(website, ''), COALESCE(category, ''), COALESCE(rating, 0),
	COALESCE(reviews_count, 0), COALESCE(latitude, 0), COALESCE(longitude, 0), status,
	email_valid, phone_valid, company_valid, linkedin_profile, research_data, personalized_message,
	created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanCampaign(row scannable) (*model.Campaign, error) {
	var c model.Campaign
	var completedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.BusinessType, &c.Location, &c.MaxResults, &c.FromEmail,
		&c.Status, &c.TotalLeads, &c.ValidatedLeads, &c.EnrichedLeads, &c.PersonalizedLeads,
		&c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return &c, nil
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var linkedin, research, personalized sql.NullString
	if err := row.Scan(&l.ID, &l.CampaignID, &l.PlaceID, &l.Name, &l.Address, &l.City, &l.State,
		&l.PostalCode, &l.Country, &l.Phone, &l.Email, &l.Website, &l.Category, &l.Rating,
		&l.Reviews, &l.Latitude, &l.Longitude, &l.Status, &l.EmailValid, &l.PhoneValid,
		&l.CompanyValid, &linkedin, &research, &personalized, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalPayload(linkedin, &l.LinkedInProfile); err != nil {
		return nil, eris.Wrap(err, "unmarshal linkedin profile")
	}
	if err := unmarshalPayload(research, &l.ResearchData); err != nil {
		return nil, eris.Wrap(err, "unmarshal research data")
	}
	if err := unmarshalPayload(personalized, &l.Personalized); err != nil {
		return nil, eris.Wrap(err, "unmarshal personalized message")
	}
	return &l, nil
}

func unmarshalPayload[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(col.String), v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// placeholderFunc renders the i-th (1-based) SQL placeholder for a driver.
type placeholderFunc func(i int) string

func sqlitePlaceholders(int) string { return "?" }

func postgresPlaceholders(i int) string { return fmt.Sprintf("$%d", i) }

// campaignPatchClauses renders SET clauses for the non-nil patch fields.
func campaignPatchClauses(p model.CampaignPatch, ph placeholderFunc) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = %s", col, ph(len(args))))
	}

	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.TotalLeads != nil {
		add("total_leads", *p.TotalLeads)
	}
	if p.ValidatedLeads != nil {
		add("validated_leads", *p.ValidatedLeads)
	}
	if p.EnrichedLeads != nil {
		add("enriched_leads", *p.EnrichedLeads)
	}
	if p.PersonalizedLeads != nil {
		add("personalized_leads", *p.PersonalizedLeads)
	}
	if p.ErrorMessage != nil {
		add("error_message", *p.ErrorMessage)
	}
	if p.CompletedAt != nil {
		add("completed_at", p.CompletedAt.UTC())
	}
	return sets, args
}

// leadPatchClauses renders SET clauses for the non-nil lead patch fields.
func leadPatchClauses(p model.LeadPatch, ph placeholderFunc) ([]string, []any, error) {
	var sets []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = %s", col, ph(len(args))))
	}

	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.EmailValid != nil {
		add("email_valid", *p.EmailValid)
	}
	if p.PhoneValid != nil {
		add("phone_valid", *p.PhoneValid)
	}
	if p.CompanyValid != nil {
		add("company_valid", *p.CompanyValid)
	}
	if p.LinkedInProfile != nil {
		data, err := json.Marshal(p.LinkedInProfile)
		if err != nil {
			return nil, nil, eris.Wrap(err, "marshal linkedin profile")
		}
		add("linkedin_profile", string(data))
	}
	if p.ResearchData != nil {
		data, err := json.Marshal(p.ResearchData)
		if err != nil {
			return nil, nil, eris.Wrap(err, "marshal research data")
		}
		add("research_data", string(data))
	}
	if p.Personalized != nil {
		data, err := json.Marshal(p.Personalized)
		if err != nil {
			return nil, nil, eris.Wrap(err, "marshal personalized message")
		}
		add("personalized_message", string(data))
	}
	return sets, args, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
