package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Marius-prog/Leads-generator/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. It is satisfied
// by pgxmock.PgxPoolIface in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"get_campaign":  `SELECT ` + pgCampaignColumns + ` FROM campaigns WHERE id = $1`,
	"insert_run":    pgInsertRunSQL,
	"get_leads_all": `SELECT ` + pgLeadColumns + ` FROM leads WHERE campaign_id = $1 ORDER BY id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS leads (
	id                   BIGSERIAL PRIMARY KEY,
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
	rating               DOUBLE PRECISION,
	reviews_count        INTEGER,
	latitude             DOUBLE PRECISION,
	longitude            DOUBLE PRECISION,
	status               TEXT NOT NULL DEFAULT 'new',
	email_valid          BOOLEAN NOT NULL DEFAULT false,
	phone_valid          BOOLEAN NOT NULL DEFAULT false,
	company_valid        BOOLEAN NOT NULL DEFAULT false,
	linkedin_profile     JSONB,
	research_data        JSONB,
	personalized_message JSONB,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id               BIGSERIAL PRIMARY KEY,
	campaign_id      TEXT NOT NULL REFERENCES campaigns(id),
	stage            TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ NOT NULL,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
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

const pgCampaignColumns = `id, name, business_type, location, max_results, COALESCE(from_email, ''),
	status, total_leads, validated_leads, enriched_leads, personalized_leads,
	COALESCE(error_message, ''), created_at, updated_at, completed_at`

const pgLeadColumns = `id, campaign_id, COALESCE(place_id, ''), name, COALESCE(address, ''), COALESCE(city, ''),
	COALESCE(state, ''), COALESCE(postal_code, ''), COALESCE(country, ''), COALESCE(phone, ''),
	COALESCE(email, ''), COALESCE(website, ''), COALESCE(category, ''), COALESCE(rating, 0),
	COALESCE(reviews_count, 0), COALESCE(latitude, 0), COALESCE(longitude, 0), status,
	email_valid, phone_valid, company_valid, linkedin_profile::text, research_data::text, personalized_message::text,
	created_at, updated_at`

const pgInsertRunSQL = `INSERT INTO pipeline_runs (campaign_id, stage, status, started_at, completed_at,
	duration_seconds, processed_count, success_count, error_count, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, business_type, location, max_results, from_email, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		c.ID, c.Name, c.BusinessType, c.Location, c.MaxResults, c.FromEmail, string(c.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert campaign")
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCampaign(ctx context.Context, campaignID string, patch model.CampaignPatch) error {
	sets, args := campaignPatchClauses(patch, postgresPlaceholders)
	if len(sets) == 0 {
		return nil
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, campaignID)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE campaigns SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update campaign %s", campaignID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("campaign not found: %s", campaignID)
	}
	return nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgCampaignColumns+` FROM campaigns WHERE id = $1`, campaignID)
	c, err := scanCampaign(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get campaign %s", campaignID)
	}
	return c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, limit int) ([]model.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgCampaignColumns+` FROM campaigns ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, eris.Wrap(rows.Err(), "postgres: list campaigns iterate")
}

func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert leads")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for _, l := range leads {
		status := l.Status
		if status == "" {
			status = model.LeadStatusNew
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO leads (campaign_id, place_id, name, address, city, state, postal_code, country,
				phone, email, website, category, rating, reviews_count, latitude, longitude, status, created_at, updated_at)
			 VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
				NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
				$13, $14, $15, $16, $17, $18, $19)`,
			l.CampaignID, l.PlaceID, l.Name, l.Address, l.City, l.State, l.PostalCode, l.Country,
			l.Phone, l.Email, l.Website, l.Category, l.Rating, l.Reviews, l.Latitude, l.Longitude,
			string(status), now, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert lead %q", l.Name)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert leads")
}

func (s *PostgresStore) GetLeadsByCampaign(ctx context.Context, campaignID string, status model.LeadStatus) ([]model.Lead, error) {
	query := `SELECT ` + pgLeadColumns + ` FROM leads WHERE campaign_id = $1`
	args := []any{campaignID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get leads for campaign %s", campaignID)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: get leads iterate")
}

func (s *PostgresStore) UpdateLeadsBatch(ctx context.Context, campaignID string, patches []model.LeadPatch) error {
	if len(patches) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin update leads")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for _, p := range patches {
		sets, args, err := leadPatchClauses(p, postgresPlaceholders)
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			continue
		}
		args = append(args, now)
		sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
		args = append(args, p.LeadID, campaignID)

		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d AND campaign_id = $%d`,
				strings.Join(sets, ", "), len(args)-1, len(args)),
			args...,
		); err != nil {
			return eris.Wrapf(err, "postgres: update lead %d", p.LeadID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit update leads")
}

func (s *PostgresStore) RecordPipelineRun(ctx context.Context, run model.PipelineRun) error {
	_, err := s.pool.Exec(ctx, pgInsertRunSQL,
		run.CampaignID, string(run.Stage), string(run.Status), run.StartedAt.UTC(), run.CompletedAt.UTC(),
		run.Duration, run.Processed, run.Succeeded, run.Errored, run.ErrorMessage,
	)
	return eris.Wrapf(err, "postgres: record pipeline run %s/%s", run.CampaignID, run.Stage)
}

func (s *PostgresStore) GetPipelineRuns(ctx context.Context, campaignID string) ([]model.PipelineRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, campaign_id, stage, status, started_at, completed_at, duration_seconds,
			processed_count, success_count, error_count, COALESCE(error_message, '')
		 FROM pipeline_runs WHERE campaign_id = $1 ORDER BY id`, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pipeline runs for %s", campaignID)
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.Stage, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.Duration, &r.Processed, &r.Succeeded, &r.Errored, &r.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pipeline run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: get pipeline runs iterate")
}

func (s *PostgresStore) GetCampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error) {
	stats := &CampaignStats{ByStatus: make(map[model.LeadStatus]int)}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE email_valid),
			COUNT(*) FILTER (WHERE phone_valid),
			COUNT(*) FILTER (WHERE company_valid),
			COUNT(*) FILTER (WHERE linkedin_profile IS NOT NULL)
		 FROM leads WHERE campaign_id = $1`, campaignID)
	if err := row.Scan(&stats.TotalLeads, &stats.ValidEmails, &stats.ValidPhones,
		&stats.ValidCompanies, &stats.EnrichedLeads); err != nil {
		return nil, eris.Wrapf(err, "postgres: campaign stats for %s", campaignID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM leads WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: campaign stats by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		stats.ByStatus[model.LeadStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: campaign stats iterate")
	}

	runs, err := s.GetPipelineRuns(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats.Runs = runs
	return stats, nil
}
