// Package store persists generated titles in PostgreSQL so search indexes can
// be rebuilt and runs audited.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS "TitleStandardization" (
	id BIGSERIAL PRIMARY KEY,
	"runId" UUID NOT NULL,
	sku TEXT NOT NULL DEFAULT '',
	"originalTitle" TEXT NOT NULL,
	department TEXT NOT NULL,
	family TEXT NOT NULL,
	category TEXT NOT NULL,
	brand TEXT NOT NULL DEFAULT '',
	pattern TEXT NOT NULL DEFAULT '',
	"systemTitle" TEXT NOT NULL,
	"labelTitle" TEXT NOT NULL,
	"seoTitle" TEXT NOT NULL,
	"appliedTransformations" TEXT[] NOT NULL DEFAULT '{}',
	compliant BOOLEAN NOT NULL,
	notes TEXT[] NOT NULL DEFAULT '{}',
	"validationMethod" TEXT NOT NULL,
	"validationStatus" TEXT NOT NULL,
	"validationIssues" TEXT[] NOT NULL DEFAULT '{}',
	corrected BOOLEAN NOT NULL,
	"createdAt" TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS "TitleStandardization_runId_idx" ON "TitleStandardization" ("runId");
CREATE INDEX IF NOT EXISTS "TitleStandardization_originalTitle_idx" ON "TitleStandardization" (LOWER("originalTitle"));
`

const insertResult = `
	INSERT INTO "TitleStandardization" (
		"runId", sku, "originalTitle", department, family, category, brand, pattern,
		"systemTitle", "labelTitle", "seoTitle", "appliedTransformations", compliant, notes,
		"validationMethod", "validationStatus", "validationIssues", corrected, "createdAt"
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
`

const selectResults = `
	SELECT
		id, "runId", sku, "originalTitle", department, family, category, brand, pattern,
		"systemTitle", "labelTitle", "seoTitle", "appliedTransformations", compliant, notes,
		"validationMethod", "validationStatus", "validationIssues", corrected, "createdAt"
	FROM "TitleStandardization"
	ORDER BY id
	LIMIT $1 OFFSET $2
`

// Record is one stored result.
type Record struct {
	ID        int64               `json:"id"`
	RunID     uuid.UUID           `json:"run_id"`
	CreatedAt time.Time           `json:"created_at"`
	Result    catalog.TitleResult `json:"result"`
}

// Stats summarizes everything stored so far.
type Stats struct {
	Total              int `json:"total"`
	Runs               int `json:"runs"`
	Passed             int `json:"passed"`
	Corrected          int `json:"corrected"`
	Warnings           int `json:"warnings"`
	PassedWithWarnings int `json:"passed_with_warnings"`
}

type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// Open connects to url and checks the connection.
func Open(ctx context.Context, url string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, log), nil
}

func New(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log, now: time.Now}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the results table and its indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveResults stores one batch of results in a single transaction.
func (s *Store) SaveResults(ctx context.Context, runID uuid.UUID, results []catalog.TitleResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertResult)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	createdAt := s.now().UTC()
	for i, r := range results {
		if _, err := stmt.ExecContext(ctx, insertArgs(runID, r, createdAt)...); err != nil {
			return fmt.Errorf("failed to save result %d (%q): %w", i, r.Record.OriginalTitle(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("results stored", zap.String("run_id", runID.String()), zap.Int("count", len(results)))
	return nil
}

func insertArgs(runID uuid.UUID, r catalog.TitleResult, createdAt time.Time) []any {
	return []any{
		runID,
		r.Record.SKU,
		r.Record.OriginalTitle(),
		r.Record.Department,
		r.Record.Family,
		r.Record.Category,
		r.Record.Brand,
		r.Pattern,
		r.SystemTitle,
		r.LabelTitle,
		r.SEOTitle,
		pq.Array(nonNil(r.AppliedTransformations)),
		r.Compliant,
		pq.Array(nonNil(r.Notes)),
		string(r.Validation.Method),
		string(r.Validation.Status),
		pq.Array(nonNil(r.Validation.Issues)),
		r.Validation.Corrected,
		createdAt,
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// List pages through stored results in insertion order.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectResults, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec            Record
		r              = &rec.Result
		method, status string
		issues         []string
	)
	err := sc.Scan(
		&rec.ID,
		&rec.RunID,
		&r.Record.SKU,
		&r.Record.ExistingTitle,
		&r.Record.Department,
		&r.Record.Family,
		&r.Record.Category,
		&r.Record.Brand,
		&r.Pattern,
		&r.SystemTitle,
		&r.LabelTitle,
		&r.SEOTitle,
		pq.Array(&r.AppliedTransformations),
		&r.Compliant,
		pq.Array(&r.Notes),
		&method,
		&status,
		pq.Array(&issues),
		&r.Validation.Corrected,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	r.Validation.Method = catalog.Method(method)
	r.Validation.Status = catalog.Status(status)
	r.Validation.Issues = nonNil(issues)
	return rec, nil
}

// Stats counts stored results per validation status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT "runId"),
			COUNT(*) FILTER (WHERE "validationStatus" = 'passed'),
			COUNT(*) FILTER (WHERE "validationStatus" = 'corrected'),
			COUNT(*) FILTER (WHERE "validationStatus" = 'warnings'),
			COUNT(*) FILTER (WHERE "validationStatus" = 'passed_with_warnings')
		FROM "TitleStandardization"
	`).Scan(&st.Total, &st.Runs, &st.Passed, &st.Corrected, &st.Warnings, &st.PassedWithWarnings)
	if err != nil {
		return st, fmt.Errorf("failed to get title stats: %w", err)
	}
	return st, nil
}
