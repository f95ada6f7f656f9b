package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"snowdiff_service/internal/domain/model"
)

// AnalysisRecorder keeps a ledger of analysis runs. Raster data is never stored.
type AnalysisRecorder interface {
	RecordAnalysis(ctx context.Context, rec AnalysisRecord) error
}

// AnalysisRecord is one finished run as the service saw it.
type AnalysisRecord struct {
	ID      uuid.UUID
	Request model.AnalysisRequest
	Layers  []model.LayerResult
	Status  string
	Err     error
}

// AnalysisRow is the stored form of an AnalysisRecord.
type AnalysisRow struct {
	ID                   string         `db:"id" json:"id"`
	Region               []byte         `db:"region" json:"-"`
	HistoricalCollection string         `db:"historical_collection" json:"historical_collection"`
	RecentCollection     string         `db:"recent_collection" json:"recent_collection"`
	HistoricalStart      time.Time      `db:"historical_start" json:"historical_start"`
	HistoricalEnd        time.Time      `db:"historical_end" json:"historical_end"`
	HistoricalMonth      int            `db:"historical_month" json:"historical_month"`
	RecentStart          time.Time      `db:"recent_start" json:"recent_start"`
	RecentEnd            time.Time      `db:"recent_end" json:"recent_end"`
	RecentMonth          int            `db:"recent_month" json:"recent_month"`
	CloudCover           int            `db:"cloud_cover" json:"cloud_cover"`
	ClipToRegion         bool           `db:"clip_to_region" json:"clip_to_region"`
	LayerNames           pq.StringArray `db:"layer_names" json:"layer_names"`
	MapIDs               pq.StringArray `db:"map_ids" json:"map_ids"`
	Status               string         `db:"status" json:"status"`
	Error                string         `db:"error" json:"error,omitempty"`
	RecordedAt           time.Time      `db:"recorded_at" json:"recorded_at"`
}

const schema = `
	CREATE TABLE IF NOT EXISTS snow_analyses (
		id                    UUID PRIMARY KEY,
		region                JSONB NOT NULL,
		historical_collection TEXT NOT NULL,
		recent_collection     TEXT NOT NULL,
		historical_start      DATE NOT NULL,
		historical_end        DATE NOT NULL,
		historical_month      SMALLINT NOT NULL,
		recent_start          DATE NOT NULL,
		recent_end            DATE NOT NULL,
		recent_month          SMALLINT NOT NULL,
		cloud_cover           SMALLINT NOT NULL,
		clip_to_region        BOOLEAN NOT NULL,
		layer_names           TEXT[] NOT NULL,
		map_ids               TEXT[] NOT NULL,
		status                TEXT NOT NULL,
		error                 TEXT NOT NULL DEFAULT '',
		recorded_at           TIMESTAMPTZ NOT NULL
	)`

type PostgresAnalysisRecorder struct {
	db *sqlx.DB
}

// NewPostgresDB opens and pings a Postgres connection.
func NewPostgresDB(connStr string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

func NewPostgresAnalysisRecorder(db *sqlx.DB) *PostgresAnalysisRecorder {
	return &PostgresAnalysisRecorder{db: db}
}

// EnsureSchema creates the ledger table when it does not exist.
func (r *PostgresAnalysisRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create snow_analyses: %w", err)
	}
	return nil
}

func (r *PostgresAnalysisRecorder) RecordAnalysis(ctx context.Context, rec AnalysisRecord) error {
	row, err := toRow(rec, time.Now().UTC())
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO snow_analyses (
			id, region,
			historical_collection, recent_collection,
			historical_start, historical_end, historical_month,
			recent_start, recent_end, recent_month,
			cloud_cover, clip_to_region,
			layer_names, map_ids, status, error, recorded_at
		) VALUES (
			:id, :region,
			:historical_collection, :recent_collection,
			:historical_start, :historical_end, :historical_month,
			:recent_start, :recent_end, :recent_month,
			:cloud_cover, :clip_to_region,
			:layer_names, :map_ids, :status, :error, :recorded_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to record analysis %s: %w", rec.ID, err)
	}
	return nil
}

// GetAnalysis loads a recorded run by id.
func (r *PostgresAnalysisRecorder) GetAnalysis(ctx context.Context, id uuid.UUID) (AnalysisRow, error) {
	const query = `SELECT * FROM snow_analyses WHERE id = $1`

	var row AnalysisRow
	if err := r.db.GetContext(ctx, &row, query, id.String()); err != nil {
		return AnalysisRow{}, fmt.Errorf("failed to query analysis %s: %w", id, err)
	}
	return row, nil
}

func toRow(rec AnalysisRecord, at time.Time) (AnalysisRow, error) {
	region, err := json.Marshal(rec.Request.Region)
	if err != nil {
		return AnalysisRow{}, fmt.Errorf("failed to marshal region: %w", err)
	}

	req := rec.Request
	row := AnalysisRow{
		ID:                   rec.ID.String(),
		Region:               region,
		HistoricalCollection: req.HistoricalCollection,
		RecentCollection:     req.RecentCollection,
		HistoricalStart:      req.Historical.Start,
		HistoricalEnd:        req.Historical.End,
		HistoricalMonth:      int(req.Historical.Month),
		RecentStart:          req.Recent.Start,
		RecentEnd:            req.Recent.End,
		RecentMonth:          int(req.Recent.Month),
		CloudCover:           req.CloudCover,
		ClipToRegion:         req.ClipToRegion,
		LayerNames:           pq.StringArray{},
		MapIDs:               pq.StringArray{},
		Status:               rec.Status,
		RecordedAt:           at,
	}
	for _, l := range rec.Layers {
		row.LayerNames = append(row.LayerNames, l.Name)
		mapID := ""
		if l.Tiles != nil {
			mapID = l.Tiles.MapID
		}
		row.MapIDs = append(row.MapIDs, mapID)
	}
	if rec.Err != nil {
		row.Error = rec.Err.Error()
	}
	return row, nil
}
